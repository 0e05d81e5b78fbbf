// Package letters renders the two weekly notification letters as HTML:
// the per-job autotest summary and the open defect list.
package letters

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-docreport/pkg/model"
	"github.com/benjaminschreck/go-docreport/pkg/sources/jenkins"
)

// Template and output file names.
const (
	SummaryTemplate = "Letter1.html"
	TableTemplate   = "report_table.html"
	IssuesTemplate  = "Letter2.html"

	SummaryLetter = "Letter_1.html"
	IssuesLetter  = "Letter_2.html"
)

//go:embed templates/*.html
var embedded embed.FS

// Templates holds the raw letter templates.
type Templates struct {
	Summary      []byte
	SummaryTable []byte
	Issues       []byte
}

// LoadTemplates reads the templates from dir on fs, or the built-in ones
// when dir is empty.
func LoadTemplates(fs afero.Fs, dir string) (Templates, error) {
	read := func(name string) ([]byte, error) {
		if dir == "" {
			return embedded.ReadFile("templates/" + name)
		}
		return afero.ReadFile(fs, filepath.Join(dir, name))
	}

	var t Templates
	for _, f := range []struct {
		name string
		dst  *[]byte
	}{
		{SummaryTemplate, &t.Summary},
		{TableTemplate, &t.SummaryTable},
		{IssuesTemplate, &t.Issues},
	} {
		data, err := read(f.name)
		if err != nil {
			return Templates{}, fmt.Errorf("failed to read letter template %s: %w", f.name, err)
		}
		*f.dst = data
	}
	return t, nil
}

// Job is a build job listed in the summary letter.
type Job struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
}

// Report is a per-job test report listed as a table row.
type Report struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
}

// Config lists what the summary letter covers.
type Config struct {
	Jobs    []Job    `yaml:"jobs"`
	Reports []Report `yaml:"reports"`
	// Clients describes the client machines, appended to every table title.
	Clients string `yaml:"clients"`
}

// ReportSource provides the latest test reports of a job.
type ReportSource interface {
	LatestReport(ctx context.Context, job, report string, newerThan time.Time) (*jenkins.Report, error)
	ReportLink(job string, build int, report string, asJSON bool) string
}

// IssueSource lists the open defects.
type IssueSource interface {
	Issues(ctx context.Context) ([]model.Issue, error)
}

// CollectSummaries gathers, per job, the summary of every report newer
// than since, grouped by machine. Jobs without any report are left out.
func CollectSummaries(ctx context.Context, src ReportSource, cfg Config, since time.Time) ([]JobSection, error) {
	log := zerolog.Ctx(ctx)

	var sections []JobSection
	for _, job := range cfg.Jobs {
		section := JobSection{Title: job.Title}
		machines := map[string]int{}

		for _, rep := range cfg.Reports {
			latest, err := src.LatestReport(ctx, job.Name, rep.Name, since)
			if err != nil {
				return nil, fmt.Errorf("job %s report %s: %w", job.Name, rep.Name, err)
			}
			if latest == nil {
				log.Debug().Str("job", job.Name).Str("report", rep.Name).Msg("no recent report")
				continue
			}

			link := src.ReportLink(job.Name, latest.Build, rep.Name, false)
			for _, m := range latest.Machines {
				i, ok := machines[m.Name]
				if !ok {
					i = len(section.Machines)
					machines[m.Name] = i
					section.Machines = append(section.Machines, MachineSection{Machine: m.Name})
				}
				section.Machines[i].Rows = append(section.Machines[i].Rows, SummaryRow{
					Title:   rep.Title,
					URL:     link + "#" + url.PathEscape(m.Name),
					Summary: m.Summary,
				})
			}
		}

		if len(section.Machines) > 0 {
			sections = append(sections, section)
		}
	}
	return sections, nil
}

// Options configures a Generator.
type Options struct {
	Config    Config
	Templates Templates
	Highlight Highlight
	// OutputDir receives the rendered letters.
	OutputDir string
}

// Generator produces both letters.
type Generator struct {
	fs      afero.Fs
	opts    Options
	reports ReportSource
	issues  IssueSource
}

// NewGenerator creates a generator writing to fs.
func NewGenerator(fs afero.Fs, opts Options, reports ReportSource, issues IssueSource) *Generator {
	return &Generator{fs: fs, opts: opts, reports: reports, issues: issues}
}

// Since returns the start of the reporting week that ends on date.
func Since(date time.Time) time.Time {
	start := date.AddDate(0, 0, -6)
	return time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
}

// Generate fetches the data and writes both letters. It returns the paths
// of the written files.
func (g *Generator) Generate(ctx context.Context, date time.Time) ([]string, error) {
	var (
		sections []JobSection
		issues   []model.Issue
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		sections, err = CollectSummaries(egCtx, g.reports, g.opts.Config, Since(date))
		return err
	})
	eg.Go(func() error {
		var err error
		issues, err = g.issues.Issues(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch letter data: %w", err)
	}

	summary, err := RenderSummary(g.opts.Templates, sections, g.opts.Config.Clients)
	if err != nil {
		return nil, err
	}
	defects, err := RenderIssues(g.opts.Templates, issues, g.opts.Highlight)
	if err != nil {
		return nil, err
	}

	if err := g.fs.MkdirAll(g.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", g.opts.OutputDir, err)
	}

	var written []string
	for _, letter := range []struct {
		name string
		data []byte
	}{
		{SummaryLetter, summary},
		{IssuesLetter, defects},
	} {
		path := filepath.Join(g.opts.OutputDir, letter.name)
		if err := g.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale %s: %w", path, err)
		}
		if err := afero.WriteFile(g.fs, path, letter.data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}

	zerolog.Ctx(ctx).Info().
		Int("jobs", len(sections)).
		Int("issues", len(issues)).
		Strs("files", written).
		Msg("letters written")
	return written, nil
}
