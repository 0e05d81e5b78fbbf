// Package confluence reads the completed and planned task lists from the
// weekly status page.
package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
)

// Config addresses the wiki.
type Config struct {
	// URL is the base URL of the wiki, e.g. https://wiki.example.com/confluence/.
	URL   string
	Token string
	// TitlePrefix precedes the ISO date in status page titles.
	TitlePrefix string
	// Marker is the text of the span heading the project's lists.
	Marker string
	// LookbackDays bounds how far back an older status page is searched.
	LookbackDays int
}

var (
	// ErrToken is returned by Validate when the wiki treats the token as
	// anonymous.
	ErrToken = errors.New("confluence token is invalid")
	// ErrNoStatusPage is returned when no status page exists in the
	// lookback window.
	ErrNoStatusPage = errors.New("no status page found")
)

// Client queries the wiki's REST API.
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

// Validate checks that the token identifies a user.
func (c *Client) Validate(ctx context.Context) error {
	if c.cfg.Token == "" {
		return fmt.Errorf("%w: token is required", ErrToken)
	}

	var user struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}
	if err := sources.GetJSON(ctx, c.http, c.cfg.URL+"rest/api/user/current", c.auth, &user); err != nil {
		return fmt.Errorf("failed to validate confluence token: %w", err)
	}
	if user.Type == "anonymous" {
		return ErrToken
	}
	return nil
}

// StatusPage returns the storage-format body of the status page for the
// report date. Pages are titled with the following day; when that page
// does not exist yet, earlier days are tried.
func (c *Client) StatusPage(ctx context.Context, reportDate time.Time) (string, error) {
	first := reportDate.AddDate(0, 0, 1)

	for days := 0; days <= c.cfg.LookbackDays; days++ {
		title := c.cfg.TitlePrefix + first.AddDate(0, 0, -days).Format("2006-01-02")

		body, ok, err := c.page(ctx, title)
		if err != nil {
			return "", err
		}
		if ok {
			zerolog.Ctx(ctx).Debug().Str("title", title).Msg("status page found")
			return body, nil
		}
	}
	return "", fmt.Errorf("%w within %d days before %s", ErrNoStatusPage, c.cfg.LookbackDays, first.Format("2006-01-02"))
}

func (c *Client) page(ctx context.Context, title string) (string, bool, error) {
	q := url.Values{}
	q.Set("title", title)
	q.Set("expand", "body.storage")

	var resp struct {
		Size    int `json:"size"`
		Results []struct {
			Body struct {
				Storage struct {
					Value string `json:"value"`
				} `json:"storage"`
			} `json:"body"`
		} `json:"results"`
	}
	if err := sources.GetJSON(ctx, c.http, c.cfg.URL+"rest/api/content?"+q.Encode(), c.auth, &resp); err != nil {
		return "", false, fmt.Errorf("failed to look up page %q: %w", title, err)
	}
	if resp.Size == 0 || len(resp.Results) == 0 {
		return "", false, nil
	}
	return resp.Results[0].Body.Storage.Value, true, nil
}

// TaskStatus returns the completed and planned tasks of the status page
// for the report date.
func (c *Client) TaskStatus(ctx context.Context, reportDate time.Time) (model.TaskStatus, error) {
	body, err := c.StatusPage(ctx, reportDate)
	if err != nil {
		return model.TaskStatus{}, err
	}
	return ParseTaskLists(body, c.cfg.Marker)
}

// ParseTaskLists finds the paragraph whose span reads marker and returns
// the items of the two lists that follow it.
func ParseTaskLists(body, marker string) (model.TaskStatus, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return model.TaskStatus{}, fmt.Errorf("failed to parse status page: %w", err)
	}

	heading := findMarker(doc, marker)
	if heading == nil {
		return model.TaskStatus{}, fmt.Errorf("status page has no %q section", marker)
	}

	var lists []*html.Node
	for n := heading.NextSibling; n != nil && len(lists) < 2; n = n.NextSibling {
		if n.Type == html.ElementNode && n.DataAtom == atom.Ul {
			lists = append(lists, n)
		}
	}
	if len(lists) < 2 {
		return model.TaskStatus{}, fmt.Errorf("expected two lists after %q, found %d", marker, len(lists))
	}

	return model.TaskStatus{
		Completed: listItems(lists[0]),
		Planned:   listItems(lists[1]),
	}, nil
}

// findMarker returns the p element containing a span with text marker.
func findMarker(n *html.Node, marker string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.P {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.DataAtom == atom.Span && strings.TrimSpace(textContent(child)) == marker {
				return n
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findMarker(child, marker); found != nil {
			return found
		}
	}
	return nil
}

func listItems(ul *html.Node) []string {
	var items []string
	for li := ul.FirstChild; li != nil; li = li.NextSibling {
		if li.Type == html.ElementNode && li.DataAtom == atom.Li {
			items = append(items, strings.Join(strings.Fields(textContent(li)), " "))
		}
	}
	return items
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}
	return sb.String()
}
