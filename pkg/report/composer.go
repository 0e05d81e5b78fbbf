// Package report fills the weekly status report template with the data
// gathered from the build server, the issue tracker and the wiki.
package report

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/benjaminschreck/go-docreport/pkg/docx"
	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
	"github.com/benjaminschreck/go-docreport/pkg/letters"
	"github.com/benjaminschreck/go-docreport/pkg/model"
)

// PeriodLayout formats both ends of the report period.
const PeriodLayout = "02-January-06"

// Composer applies report data to the anchors named by a manifest.
type Composer struct {
	doc      *docx.Document
	manifest *Manifest
	log      zerolog.Logger
}

// NewComposer binds a manifest to an opened document.
func NewComposer(doc *docx.Document, m *Manifest, log zerolog.Logger) *Composer {
	return &Composer{doc: doc, manifest: m, log: log}
}

// Validate checks, before anything is changed, that the template carries
// every anchor the manifest needs.
func (c *Composer) Validate() error {
	return c.doc.Validate(c.manifest.RequiredAnchors())
}

// UpdateLatestRunLink points the hyperlink at anchor to url and relabels
// it. The hyperlink's existing relationship is updated; no new one is
// created.
func (c *Composer) UpdateLatestRunLink(anchor, url, label string) error {
	el, err := c.doc.Lookup(anchor)
	if err != nil {
		return err
	}

	link := el
	if link.Tag != "hyperlink" {
		link = xml.FirstDescendant(el, "hyperlink")
	}
	if link == nil {
		return docx.NewStructureError(anchor, "no hyperlink at anchor")
	}

	relID, ok := xml.NamespacedAttr(link, "r", "id")
	if !ok {
		return docx.NewStructureError(anchor, "hyperlink has no relationship id")
	}
	text := xml.FirstDescendant(link, "t")
	if text == nil {
		return docx.NewStructureError(anchor, "hyperlink has no text")
	}

	if err := c.doc.Relationships().UpdateTarget(relID, url); err != nil {
		return err
	}
	text.SetText(label)
	return nil
}

// FillTaskList adds one bullet per item below the list header at anchor.
// An empty list removes the header.
func (c *Composer) FillTaskList(anchor string, items []string) error {
	header, err := c.doc.Lookup(anchor)
	if err != nil {
		return err
	}
	if err := c.doc.Composer().GrowBulletList(header, anchor, items); err != nil {
		return err
	}
	if len(items) == 0 {
		c.doc.Forget(anchor)
	}
	return nil
}

// FillIssuesTable writes one row per issue: key link, summary, created
// date and severity. Blocker and critical severities are bold and
// highlighted, as are creation dates in the stale year.
func (c *Composer) FillIssuesTable(issues []model.Issue) error {
	anchor := c.manifest.IssuesTable
	table, err := c.doc.Lookup(anchor)
	if err != nil {
		return err
	}

	color := c.manifest.HighlightColor
	return docx.GrowTable(table, anchor, len(issues), func(i int, row *docx.Row) error {
		issue := issues[i]

		var created docx.Content = docx.Plain(issue.CreatedLabel())
		if c.manifest.StaleYear != 0 && issue.Created.Year() == c.manifest.StaleYear {
			created = docx.Styled{Text: issue.CreatedLabel(), Color: color}
		}
		var severity docx.Content = docx.Plain(issue.Severity)
		if letters.IsSevere(issue.Severity) {
			severity = docx.Styled{Text: issue.Severity, Bold: true, Color: color}
		}

		return c.setCells(row, []docx.Content{
			docx.Link{URL: issue.URL, Text: issue.Key},
			docx.Plain(issue.Summary),
			created,
			severity,
		})
	})
}

// FillGroupTable writes one "<group> (<n> cases)" row per group.
func (c *Composer) FillGroupTable(anchor string, stats model.GroupStats) error {
	table, err := c.doc.Lookup(anchor)
	if err != nil {
		return err
	}
	return docx.GrowTable(table, anchor, len(stats), func(i int, row *docx.Row) error {
		return c.setCells(row, []docx.Content{
			docx.Plain(fmt.Sprintf("%s (%d cases)", stats[i].Group, stats[i].Count)),
		})
	})
}

// setCells replaces the content of the first len(values) cells.
func (c *Composer) setCells(row *docx.Row, values []docx.Content) error {
	for i, v := range values {
		cell, err := row.Cell(i)
		if err != nil {
			return err
		}
		docx.ClearCell(cell)
		if err := c.doc.Composer().SetCell(cell, v); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReportPeriod writes FormatPeriod(from, to) into the period field.
func (c *Composer) UpdateReportPeriod(from, to time.Time) error {
	anchor := c.manifest.PeriodAnchor
	el, err := c.doc.Lookup(anchor)
	if err != nil {
		return err
	}

	text := el
	if text.Tag != "t" {
		text = xml.FirstDescendant(el, "t")
	}
	if text == nil {
		return docx.NewStructureError(anchor, "period field has no text")
	}
	text.SetText(FormatPeriod(from, to))
	return nil
}

// ReplaceImage swaps the picture at anchor for the image file at src.
func (c *Composer) ReplaceImage(anchor, src string) error {
	el, err := c.doc.Lookup(anchor)
	if err != nil {
		return err
	}
	return c.doc.ReplaceImage(el, src)
}

// FormatPeriod joins both dates, formatted with PeriodLayout, by an em dash.
func FormatPeriod(from, to time.Time) string {
	return from.Format(PeriodLayout) + " — " + to.Format(PeriodLayout)
}

// Period returns the first and last day of the week ending on date.
func Period(date time.Time) (time.Time, time.Time) {
	return date.AddDate(0, 0, -6), date
}

// Data is everything a report is built from.
type Data struct {
	// Runs holds the latest build of each job that has one, by job name.
	Runs   map[string]model.BuildRun
	Tasks  model.TaskStatus
	Issues []model.Issue
	// Groups holds the skipped/observed statistics by job name.
	Groups map[string]model.GroupStats
}

// Compose applies data in the fixed report order. The caller validates
// the template first.
func (c *Composer) Compose(date time.Time, data *Data) error {
	m := c.manifest

	steps := []struct {
		name string
		run  func() error
	}{
		{"updating latest run links", func() error {
			for _, job := range m.Jobs {
				run, ok := data.Runs[job.Name]
				if !ok {
					continue
				}
				if err := c.UpdateLatestRunLink(job.LinkAnchor, run.URL, job.Title(run.Number)); err != nil {
					return fmt.Errorf("job %s: %w", job.Name, err)
				}
			}
			return nil
		}},
		{"constructing task lists", func() error {
			if err := c.FillTaskList(m.Tasks.Completed, data.Tasks.Completed); err != nil {
				return err
			}
			return c.FillTaskList(m.Tasks.Planned, data.Tasks.Planned)
		}},
		{"constructing issue table", func() error {
			return c.FillIssuesTable(data.Issues)
		}},
		{"constructing skipped and observed tables", func() error {
			for _, job := range m.Jobs {
				if job.GroupsAnchor == "" {
					continue
				}
				if err := c.FillGroupTable(job.GroupsAnchor, data.Groups[job.Name]); err != nil {
					return fmt.Errorf("job %s: %w", job.Name, err)
				}
			}
			return nil
		}},
		{"replacing images", func() error {
			for _, img := range m.Images {
				if err := c.ReplaceImage(img.Anchor, img.Source); err != nil {
					return err
				}
			}
			return nil
		}},
		{"updating footer", func() error {
			return c.UpdateReportPeriod(Period(date))
		}},
	}

	for i, step := range steps {
		c.log.Info().Int("step", i+1).Int("of", len(steps)).Msg(step.name)
		if err := step.run(); err != nil {
			return err
		}
	}
	return nil
}
