package report

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-docreport/pkg/docx"
)

const testManifestYAML = `
stale_year: 2021
period_anchor: PERIOD
issues_table: ISSUES
tasks:
  completed: DONE
  planned: PLANNED
jobs:
  - name: Nightly
    link_title: "Nightly #{build}"
    link_anchor: NIGHTLY_LINK
    groups_report: Test_Report
    groups_anchor: NIGHTLY_GROUPS
  - name: Weekly
    link_title: "Weekly #{build}"
    link_anchor: WEEKLY_LINK
`

const (
	nsDecl = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

	cell      = `<w:tc><w:p><w:r><w:t>x</w:t></w:r></w:p></w:tc>`
	headerRow = `<w:tr>` + cell + cell + cell + cell + `</w:tr>`

	templateBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + nsDecl + `><w:body>` +
		`<w:p><w:hyperlink r:id="rIdNightly" id="NIGHTLY_LINK"><w:r><w:t>Nightly #0</w:t></w:r></w:hyperlink></w:p>` +
		`<w:p id="WEEKLY_LINK"><w:hyperlink r:id="rIdWeekly"><w:r><w:t>Weekly #0</w:t></w:r></w:hyperlink></w:p>` +
		`<w:p id="DONE"><w:r><w:t>Completed</w:t></w:r></w:p>` +
		`<w:p id="PLANNED"><w:r><w:t>Planned</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Backlog</w:t></w:r></w:p>` +
		`<w:tbl id="ISSUES"><w:tblPr/>` + headerRow +
		`<w:tr><w:tc><w:p><w:pPr><w:jc w:val="left"/></w:pPr><w:r><w:t>key</w:t></w:r></w:p></w:tc>` + cell + cell + cell + `</w:tr>` +
		`</w:tbl>` +
		`<w:tbl id="NIGHTLY_GROUPS"><w:tr>` + cell + `</w:tr><w:tr><w:tc><w:p/></w:tc></w:tr></w:tbl>` +
		`</w:body></w:document>`

	templateFooter = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:ftr ` + nsDecl + `><w:p><w:r><w:t id="PERIOD">period</w:t></w:r></w:p></w:ftr>`

	templateRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rIdNightly" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="http://ci/job/Nightly/0/" TargetMode="External"/>` +
		`<Relationship Id="rIdWeekly" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="http://ci/job/Weekly/0/" TargetMode="External"/>` +
		`</Relationships>`

	templateContentTypes = `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`
)

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(testManifestYAML))
	require.NoError(t, err)
	return m
}

// writeTemplate lays out an unpacked template below dir; body replaces the
// default document part when not empty.
func writeTemplate(t *testing.T, fs afero.Fs, dir, body string) {
	t.Helper()
	if body == "" {
		body = templateBody
	}
	files := map[string]string{
		docx.ContentTypesPart:  templateContentTypes,
		docx.DocumentPart:      body,
		docx.FooterPart:        templateFooter,
		docx.RelationshipsPart: templateRels,
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, dir+"/"+name, []byte(content), 0o644))
	}
}

// openTestComposer prepares a working copy of the test template and binds
// the test manifest to it.
func openTestComposer(t *testing.T) (*Composer, *docx.Document) {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeTemplate(t, fs, "/template", "")

	ws, err := docx.NewWorkspace(fs, docx.WorkspaceOptions{
		Template: "/template",
		Dir:      "/work",
		Output:   "/out/report.docx",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, ws.Prepare())

	m := testManifest(t)
	doc, err := docx.OpenDocument(ws, m.Style)
	require.NoError(t, err)

	c := NewComposer(doc, m, zerolog.Nop())
	require.NoError(t, c.Validate())
	return c, doc
}

// texts concatenates every w:t below el.
func texts(el *etree.Element) string {
	var sb strings.Builder
	for _, t := range el.FindElements(".//t") {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// dataRows returns the rows of table after the header.
func dataRows(table *etree.Element) []*etree.Element {
	rows := table.SelectElements("tr")
	if len(rows) == 0 {
		return nil
	}
	return rows[1:]
}
