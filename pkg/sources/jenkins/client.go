// Package jenkins reads build numbers and test reports from the CI server.
package jenkins

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
)

// Config addresses the build server and the report host.
type Config struct {
	// Host is the base URL of the build server, e.g. http://ci.example.com.
	Host string
	// ReportHost is the base URL serving summary reports.
	ReportHost string
	Username   string
	Token      string
	// PreferredMachine selects the machine whose groups are counted.
	PreferredMachine string
}

// ErrCredentials is returned by Validate when the server rejects the
// configured credentials.
var ErrCredentials = errors.New("jenkins credentials are invalid")

// Client talks to the build server.
type Client struct {
	cfg  Config
	http *retryablehttp.Client
	auth sources.Authorizer
}

// New creates a client. Call Validate before use.
func New(cfg Config, httpClient *retryablehttp.Client) *Client {
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")
	cfg.ReportHost = strings.TrimSuffix(cfg.ReportHost, "/")
	return &Client{
		cfg:  cfg,
		http: httpClient,
		auth: sources.BasicAuth(cfg.Username, cfg.Token),
	}
}

// Validate checks that credentials are configured and accepted.
func (c *Client) Validate(ctx context.Context) error {
	if c.cfg.Username == "" || c.cfg.Token == "" {
		return fmt.Errorf("%w: username and token are required", ErrCredentials)
	}

	var who struct {
		ID string `json:"id"`
	}
	err := sources.GetJSON(ctx, c.http, c.cfg.Host+"/me/api/json", c.auth, &who)
	var statusErr *sources.StatusError
	if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
		return ErrCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to validate jenkins credentials: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Str("user", who.ID).Msg("jenkins credentials accepted")
	return nil
}

// BuildLink returns the page of build number of job.
func (c *Client) BuildLink(job string, number int) string {
	return fmt.Sprintf("%s/job/%s/%d/", c.cfg.Host, url.PathEscape(job), number)
}

// ReportLink returns the JSON or HTML summary report of a build.
func (c *Client) ReportLink(job string, number int, report string, asJSON bool) string {
	file := "summary_report.html"
	if asJSON {
		file = "summary_report.json"
	}
	return fmt.Sprintf("%s/%s/%d/%s/%s", c.cfg.ReportHost, url.PathEscape(job), number, url.PathEscape(report), file)
}

// LatestBuild returns the last build of job. ok is false when the job has
// never run.
func (c *Client) LatestBuild(ctx context.Context, job string) (run model.BuildRun, ok bool, err error) {
	var resp struct {
		LastBuild *struct {
			ID string `json:"id"`
		} `json:"lastBuild"`
	}

	u := fmt.Sprintf("%s/job/%s/api/json?tree=lastBuild[id]", c.cfg.Host, url.PathEscape(job))
	if err := sources.GetJSON(ctx, c.http, u, c.auth, &resp); err != nil {
		return model.BuildRun{}, false, fmt.Errorf("failed to get latest build of %s: %w", job, err)
	}
	if resp.LastBuild == nil {
		return model.BuildRun{}, false, nil
	}

	number, err := strconv.Atoi(resp.LastBuild.ID)
	if err != nil {
		return model.BuildRun{}, false, fmt.Errorf("invalid build id %q of %s: %w", resp.LastBuild.ID, job, err)
	}
	return model.BuildRun{Number: number, URL: c.BuildLink(job, number)}, true, nil
}

// LatestReport returns the newest available report of job, walking back
// through older builds while a build has no report. It returns nil when
// no build has one, when the report found is broken, or when it was
// produced before newerThan (zero means no limit).
func (c *Client) LatestReport(ctx context.Context, job, report string, newerThan time.Time) (*Report, error) {
	log := zerolog.Ctx(ctx).With().Str("job", job).Str("report", report).Logger()

	latest, ok, err := c.LatestBuild(ctx, job)
	if err != nil || !ok {
		return nil, err
	}

	for build := latest.Number; build > 0; build-- {
		link := c.ReportLink(job, build, report, true)
		body, err := sources.Get(ctx, c.http, link, c.auth)

		var statusErr *sources.StatusError
		if errors.As(err, &statusErr) {
			log.Debug().Int("build", build).Int("status", statusErr.StatusCode).Msg("report not available")
			continue
		}
		if err != nil {
			return nil, err
		}

		parsed, err := ParseReport(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", link, err)
		}
		parsed.Build = build

		if len(parsed.Machines) == 0 {
			log.Warn().Str("url", link).Msg("report is empty")
			return nil, nil
		}
		if parsed.Broken() {
			log.Error().Str("url", link).Msg("report is broken")
			return nil, nil
		}
		if !newerThan.IsZero() && parsed.ReportingDate().Before(newerThan) {
			log.Debug().Int("build", build).Time("reported", parsed.ReportingDate()).Msg("report is outdated")
			return nil, nil
		}
		return parsed, nil
	}

	log.Warn().Msg("no build has a report")
	return nil, nil
}

// GroupStats returns skipped plus observed cases per group of the latest
// report of job, taken from the preferred machine. A job without usable
// report yields no stats.
func (c *Client) GroupStats(ctx context.Context, job, report string) (model.GroupStats, error) {
	latest, err := c.LatestReport(ctx, job, report, time.Time{})
	if err != nil || latest == nil {
		return nil, err
	}
	return latest.GroupStats(c.cfg.PreferredMachine), nil
}
