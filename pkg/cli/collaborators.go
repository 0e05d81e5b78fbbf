package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/benjaminschreck/go-docreport/pkg/config"
	"github.com/benjaminschreck/go-docreport/pkg/letters"
	"github.com/benjaminschreck/go-docreport/pkg/publish"
	"github.com/benjaminschreck/go-docreport/pkg/report"
	"github.com/benjaminschreck/go-docreport/pkg/sources"
	"github.com/benjaminschreck/go-docreport/pkg/sources/confluence"
	"github.com/benjaminschreck/go-docreport/pkg/sources/jenkins"
	"github.com/benjaminschreck/go-docreport/pkg/sources/jira"
)

// Collaborator names, as used in checks and log fields.
const (
	Jenkins    = "jenkins"
	Jira       = "jira"
	Confluence = "confluence"
)

// BuildServer serves both the report and the summary letter.
type BuildServer interface {
	report.BuildServer
	letters.ReportSource
}

// Check verifies one collaborator's credentials.
type Check struct {
	Name     string
	Validate func(ctx context.Context) error
}

// Collaborators are the remote services behind the commands. Publisher is
// nil unless publishing is enabled.
type Collaborators struct {
	Builds    BuildServer
	Issues    report.IssueTracker
	Wiki      report.Wiki
	Publisher report.Publisher
	Checks    []Check
}

// NewCollaborators builds the clients described by cfg. They share one
// retrying HTTP transport.
func NewCollaborators(ctx context.Context, cfg *config.Config, fs afero.Fs, log zerolog.Logger) (*Collaborators, error) {
	httpClient := sources.NewHTTPClient(sources.ClientOptions{
		Timeout:  cfg.HTTP.Timeout,
		RetryMax: cfg.HTTP.RetryMax,
		Logger:   log,
	})

	builds := jenkins.New(jenkins.Config{
		Host:             cfg.Jenkins.Host,
		ReportHost:       cfg.Jenkins.ReportHost,
		Username:         cfg.Jenkins.Username,
		Token:            cfg.Jenkins.Token,
		PreferredMachine: cfg.Jenkins.PreferredMachine,
	}, httpClient)
	issues := jira.New(jira.Config{
		URL:           cfg.Jira.URL,
		Token:         cfg.Jira.Token,
		JQL:           cfg.Jira.JQL,
		SeverityField: cfg.Jira.SeverityField,
	}, httpClient)
	wiki := confluence.New(confluence.Config{
		URL:          cfg.Confluence.URL,
		Token:        cfg.Confluence.Token,
		TitlePrefix:  cfg.Confluence.TitlePrefix,
		Marker:       cfg.Confluence.Marker,
		LookbackDays: cfg.Confluence.LookbackDays,
	}, httpClient)

	c := &Collaborators{
		Builds: builds,
		Issues: issues,
		Wiki:   wiki,
		Checks: []Check{
			{Name: Jenkins, Validate: builds.Validate},
			{Name: Jira, Validate: issues.Validate},
			{Name: Confluence, Validate: wiki.Validate},
		},
	}

	if cfg.Publish.Enabled {
		uploader, err := publish.NewFromConfig(ctx, fs, publish.Config{
			Bucket:  cfg.Publish.Bucket,
			Prefix:  cfg.Publish.Prefix,
			Region:  cfg.Publish.Region,
			Profile: cfg.Publish.Profile,
		})
		if err != nil {
			return nil, err
		}
		c.Publisher = uploader
	}
	return c, nil
}

// Verify runs the checks of the named collaborators, or all checks when no
// name is given. Every failing check is reported.
func (c *Collaborators) Verify(ctx context.Context, names ...string) error {
	wanted := map[string]bool{}
	for _, name := range names {
		wanted[name] = true
	}

	log := zerolog.Ctx(ctx)
	var failed []string
	for _, check := range c.Checks {
		if len(wanted) > 0 && !wanted[check.Name] {
			continue
		}
		if err := check.Validate(ctx); err != nil {
			log.Error().Err(err).Str("collaborator", check.Name).Msg("credential check failed")
			failed = append(failed, fmt.Sprintf("%s: %v", check.Name, err))
			continue
		}
		log.Debug().Str("collaborator", check.Name).Msg("credentials accepted")
	}
	if len(failed) > 0 {
		return fmt.Errorf("credential checks failed: %s", strings.Join(failed, "; "))
	}
	return nil
}
