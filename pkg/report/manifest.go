package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-docreport/pkg/docx"
	"github.com/benjaminschreck/go-docreport/pkg/letters"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Job is a build job whose latest run is linked from the report.
type Job struct {
	Name string `yaml:"name"`
	// LinkTitle is the link label; "{build}" is replaced by the build number.
	LinkTitle  string `yaml:"link_title"`
	LinkAnchor string `yaml:"link_anchor"`
	// GroupsReport and GroupsAnchor are set for jobs that get a
	// skipped/observed table, filled from that report.
	GroupsReport string `yaml:"groups_report"`
	GroupsAnchor string `yaml:"groups_anchor"`
}

// Title returns the link label for build.
func (j Job) Title(build int) string {
	return strings.ReplaceAll(j.LinkTitle, "{build}", strconv.Itoa(build))
}

// Image replaces the picture at Anchor with the file at Source.
type Image struct {
	Anchor string `yaml:"anchor"`
	Source string `yaml:"source"`
}

// Tasks names the headers of the two task lists.
type Tasks struct {
	Completed string `yaml:"completed"`
	Planned   string `yaml:"planned"`
}

// Manifest describes the anchors of a report template and what fills them.
type Manifest struct {
	Style docx.Style `yaml:"style"`
	// StaleYear highlights issues created in that year.
	StaleYear      int            `yaml:"stale_year"`
	HighlightColor string         `yaml:"highlight_color"`
	PeriodAnchor   string         `yaml:"period_anchor"`
	IssuesTable    string         `yaml:"issues_table"`
	Tasks          Tasks          `yaml:"tasks"`
	Jobs           []Job          `yaml:"jobs"`
	Images         []Image        `yaml:"images"`
	Letters        letters.Config `yaml:"letters"`
}

// DefaultManifest returns the manifest of the stock template.
func DefaultManifest() *Manifest {
	m, err := ParseManifest(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("embedded manifest is invalid: %v", err))
	}
	return m
}

// ParseManifest decodes and validates a manifest. Style fields that are
// not set keep their defaults.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("manifest is empty")
	}

	m := &Manifest{Style: docx.DefaultStyle(), HighlightColor: "C00000"}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifest reads the manifest at path on fs, or the embedded one when
// path is empty.
func LoadManifest(fs afero.Fs, path string) (*Manifest, error) {
	if path == "" {
		return ParseManifest(defaultManifest)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks that every required anchor is named and that no anchor
// is claimed twice.
func (m *Manifest) Validate() error {
	problems := docx.NewMultiError()
	require := func(what, v string) {
		if strings.TrimSpace(v) == "" {
			problems.Add(errors.New(what + " is required"))
		}
	}

	require("period_anchor", m.PeriodAnchor)
	require("issues_table", m.IssuesTable)
	require("tasks.completed", m.Tasks.Completed)
	require("tasks.planned", m.Tasks.Planned)

	names := map[string]bool{}
	for i, job := range m.Jobs {
		prefix := fmt.Sprintf("jobs[%d]", i)
		require(prefix+".name", job.Name)
		require(prefix+".link_anchor", job.LinkAnchor)
		require(prefix+".link_title", job.LinkTitle)
		if (job.GroupsAnchor == "") != (job.GroupsReport == "") {
			problems.Add(fmt.Errorf("%s: groups_anchor and groups_report go together", prefix))
		}
		if names[job.Name] {
			problems.Add(fmt.Errorf("%s: duplicate job %q", prefix, job.Name))
		}
		names[job.Name] = true
	}
	for i, img := range m.Images {
		require(fmt.Sprintf("images[%d].anchor", i), img.Anchor)
		require(fmt.Sprintf("images[%d].source", i), img.Source)
	}

	seen := map[string]bool{}
	for _, id := range m.RequiredAnchors() {
		if id != "" && seen[id] {
			problems.Add(fmt.Errorf("anchor %q is used more than once", id))
		}
		seen[id] = true
	}

	if err := problems.Err(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

// RequiredAnchors lists every anchor the report fills, in fill order.
func (m *Manifest) RequiredAnchors() []string {
	var ids []string
	for _, job := range m.Jobs {
		ids = append(ids, job.LinkAnchor)
	}
	ids = append(ids, m.Tasks.Completed, m.Tasks.Planned, m.IssuesTable)
	for _, job := range m.Jobs {
		if job.GroupsAnchor != "" {
			ids = append(ids, job.GroupsAnchor)
		}
	}
	for _, img := range m.Images {
		ids = append(ids, img.Anchor)
	}
	return append(ids, m.PeriodAnchor)
}

// Highlight returns the letter highlighting matching the report's.
func (m *Manifest) Highlight() letters.Highlight {
	return letters.Highlight{StaleYear: m.StaleYear, Color: "#" + strings.TrimPrefix(m.HighlightColor, "#")}
}
