package report

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/benjaminschreck/go-docreport/pkg/docx"
	"github.com/benjaminschreck/go-docreport/pkg/model"
)

// BuildServer provides the latest builds and group statistics of jobs.
type BuildServer interface {
	LatestBuild(ctx context.Context, job string) (model.BuildRun, bool, error)
	GroupStats(ctx context.Context, job, report string) (model.GroupStats, error)
}

// IssueTracker lists the issues of the backlog table.
type IssueTracker interface {
	Issues(ctx context.Context) ([]model.Issue, error)
}

// Wiki provides the completed and planned tasks.
type Wiki interface {
	TaskStatus(ctx context.Context, date time.Time) (model.TaskStatus, error)
}

// Publisher uploads the finished report.
type Publisher interface {
	Publish(ctx context.Context, path string) (string, error)
}

// Sources bundles the collaborators a report is built from. Publisher may
// be nil.
type Sources struct {
	Builds    BuildServer
	Issues    IssueTracker
	Wiki      Wiki
	Publisher Publisher
}

// Paths locates the template, the working copy and the final report.
type Paths struct {
	Template string
	WorkDir  string
	Output   string
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Output   string
	Location string // publish location, empty when not published
}

// Generator builds reports.
type Generator struct {
	fs       afero.Fs
	manifest *Manifest
	paths    Paths
	sources  Sources
}

// NewGenerator creates a generator working on fs.
func NewGenerator(fs afero.Fs, m *Manifest, paths Paths, sources Sources) *Generator {
	return &Generator{fs: fs, manifest: m, paths: paths, sources: sources}
}

// Fetch gathers all report data concurrently. It returns once every
// request finished or the first one failed.
func (g *Generator) Fetch(ctx context.Context, date time.Time) (*Data, error) {
	jobs := g.manifest.Jobs
	runs := make([]*model.BuildRun, len(jobs))
	groups := make([]model.GroupStats, len(jobs))
	data := &Data{}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		tasks, err := g.sources.Wiki.TaskStatus(ctx, date)
		if err != nil {
			return fmt.Errorf("failed to fetch task status: %w", err)
		}
		data.Tasks = tasks
		return nil
	})
	eg.Go(func() error {
		issues, err := g.sources.Issues.Issues(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch issues: %w", err)
		}
		data.Issues = issues
		return nil
	})
	for i, job := range jobs {
		i, job := i, job
		eg.Go(func() error {
			run, ok, err := g.sources.Builds.LatestBuild(ctx, job.Name)
			if err != nil {
				return fmt.Errorf("failed to fetch latest build of %s: %w", job.Name, err)
			}
			if ok {
				runs[i] = &run
			}
			if job.GroupsReport == "" {
				return nil
			}
			stats, err := g.sources.Builds.GroupStats(ctx, job.Name, job.GroupsReport)
			if err != nil {
				return fmt.Errorf("failed to fetch group statistics of %s: %w", job.Name, err)
			}
			groups[i] = stats
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	data.Runs = make(map[string]model.BuildRun, len(jobs))
	data.Groups = make(map[string]model.GroupStats, len(jobs))
	for i, job := range jobs {
		if runs[i] != nil {
			data.Runs[job.Name] = *runs[i]
		}
		if groups[i] != nil {
			data.Groups[job.Name] = groups[i]
		}
	}
	return data, nil
}

func (g *Generator) workspace(dir, output string, log zerolog.Logger) (*docx.Workspace, error) {
	return docx.NewWorkspace(g.fs, docx.WorkspaceOptions{
		Template: g.paths.Template,
		Dir:      dir,
		Output:   output,
		Logger:   log,
	})
}

// Generate builds the report for the week ending on date. All data is
// fetched before the working copy is touched. On failure the working copy
// is left behind and discarded by the next run.
func (g *Generator) Generate(ctx context.Context, date time.Time) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := zerolog.Ctx(ctx).With().Str("run_id", res.RunID).Logger()
	ctx = log.WithContext(ctx)

	log.Info().Time("date", date).Msg("fetching report data")
	data, err := g.Fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	ws, err := g.workspace(g.paths.WorkDir, g.paths.Output, log)
	if err != nil {
		return nil, err
	}
	if err := ws.Prepare(); err != nil {
		return nil, err
	}

	doc, err := docx.OpenDocument(ws, g.manifest.Style)
	if err != nil {
		return nil, err
	}
	composer := NewComposer(doc, g.manifest, log)
	if err := composer.Validate(); err != nil {
		return nil, err
	}
	if err := composer.Compose(date, data); err != nil {
		return nil, err
	}

	if err := doc.Save(); err != nil {
		return nil, err
	}
	if err := ws.Finalize(); err != nil {
		return nil, err
	}
	if err := ws.Cleanup(); err != nil {
		return nil, err
	}
	res.Output = ws.Output()
	log.Info().Str("output", res.Output).Msg("report generated")

	if g.sources.Publisher != nil {
		location, err := g.sources.Publisher.Publish(ctx, res.Output)
		if err != nil {
			return nil, err
		}
		res.Location = location
	}
	return res, nil
}

// ValidateTemplate checks the template against the manifest without
// fetching any data. It uses its own working copy, next to the regular
// one, so an existing report is left alone.
func (g *Generator) ValidateTemplate(ctx context.Context) error {
	log := *zerolog.Ctx(ctx)

	dir := filepath.Clean(g.paths.WorkDir) + ".validate"
	ws, err := g.workspace(dir, filepath.Join(dir, "validate.docx"), log)
	if err != nil {
		return err
	}
	if err := ws.Prepare(); err != nil {
		return err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("failed to remove working copy")
		}
	}()

	doc, err := docx.OpenDocument(ws, g.manifest.Style)
	if err != nil {
		return err
	}
	if err := NewComposer(doc, g.manifest, log).Validate(); err != nil {
		return err
	}

	log.Info().Int("anchors", len(g.manifest.RequiredAnchors())).Msg("template is valid")
	return nil
}
