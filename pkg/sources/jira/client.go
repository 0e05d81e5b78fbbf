// Package jira lists the open defects shown in the report backlog.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
)

const pageSize = 100

// Config addresses the tracker.
type Config struct {
	// URL is the base URL of the tracker, e.g. https://jira.example.com/jira/.
	URL   string
	Token string
	// JQL selects the issues listed in the report.
	JQL string
	// SeverityField is the custom field holding the severity option.
	SeverityField string
}

// ErrToken is returned by Validate when the token does not grant access.
var ErrToken = errors.New("jira token is invalid")

// Client queries the tracker's REST API.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
	auth sources.Authorizer
}

// New creates a client. Call Validate before use.
func New(cfg Config, httpClient *retryablehttp.Client) *Client {
	if !strings.HasSuffix(cfg.URL, "/") {
		cfg.URL += "/"
	}
	return &Client{cfg: cfg, http: httpClient, auth: sources.BearerToken(cfg.Token)}
}

type searchResponse struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		Key    string                     `json:"key"`
		Fields map[string]json.RawMessage `json:"fields"`
	} `json:"issues"`
}

// Validate runs an unrestricted search. A token without access sees no
// issues at all.
func (c *Client) Validate(ctx context.Context) error {
	if c.cfg.Token == "" {
		return fmt.Errorf("%w: token is required", ErrToken)
	}

	resp, err := c.search(ctx, "", nil, 0, 1)
	if err != nil {
		return fmt.Errorf("failed to validate jira token: %w", err)
	}
	if resp.Total == 0 {
		return ErrToken
	}
	return nil
}

// Issues returns every issue matching the configured query, in the order
// the tracker returns them.
func (c *Client) Issues(ctx context.Context) ([]model.Issue, error) {
	fields := []string{"summary", "created", c.cfg.SeverityField}

	var issues []model.Issue
	for start := 0; ; {
		resp, err := c.search(ctx, c.cfg.JQL, fields, start, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to search issues: %w", err)
		}

		for _, raw := range resp.Issues {
			issue, err := c.parseIssue(raw.Key, raw.Fields)
			if err != nil {
				return nil, fmt.Errorf("issue %s: %w", raw.Key, err)
			}
			issues = append(issues, issue)
		}

		start += len(resp.Issues)
		if len(resp.Issues) == 0 || start >= resp.Total {
			break
		}
	}

	zerolog.Ctx(ctx).Debug().Int("issues", len(issues)).Msg("jira issues fetched")
	return issues, nil
}

func (c *Client) search(ctx context.Context, jql string, fields []string, start, max int) (*searchResponse, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(start))
	q.Set("maxResults", strconv.Itoa(max))
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}

	var resp searchResponse
	if err := sources.GetJSON(ctx, c.http, c.cfg.URL+"rest/api/2/search?"+q.Encode(), c.auth, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) parseIssue(key string, fields map[string]json.RawMessage) (model.Issue, error) {
	var summary, created string
	if err := unmarshalField(fields, "summary", &summary); err != nil {
		return model.Issue{}, err
	}
	if err := unmarshalField(fields, "created", &created); err != nil {
		return model.Issue{}, err
	}

	date, err := time.Parse("2006-01-02", strings.SplitN(created, "T", 2)[0])
	if err != nil {
		return model.Issue{}, fmt.Errorf("invalid created date %q: %w", created, err)
	}

	var severity struct {
		Value string `json:"value"`
	}
	if err := unmarshalField(fields, c.cfg.SeverityField, &severity); err != nil {
		return model.Issue{}, err
	}

	return model.Issue{
		Key:      key,
		Summary:  summary,
		Created:  date,
		Severity: lastWord(severity.Value),
		URL:      c.cfg.URL + "browse/" + key,
	}, nil
}

func unmarshalField(fields map[string]json.RawMessage, name string, out interface{}) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid field %s: %w", name, err)
	}
	return nil
}

// lastWord extracts "Critical" from option values such as "2 - Critical".
func lastWord(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	return words[len(words)-1]
}
