package docx

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	nsDecl = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture"`

	fixtureBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + nsDecl + `><w:body>` +
		`<w:p id="LATEST_RUN"><w:hyperlink r:id="rIdRun" id="RUN_LINK"><w:r><w:rPr><w:rStyle w:val="aa"/></w:rPr><w:t>Nightly #1</w:t></w:r></w:hyperlink></w:p>` +
		`<w:p id="TASKS"><w:r><w:t>Completed</w:t></w:r></w:p>` +
		`<w:p id="AFTER_TASKS"><w:r><w:t>Next</w:t></w:r></w:p>` +
		`<w:tbl id="ISSUES"><w:tblPr/>` +
		`<w:tr><w:tc><w:p><w:r><w:t>Key</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Summary</w:t></w:r></w:p></w:tc></w:tr>` +
		`<w:tr><w:tc><w:p><w:pPr><w:jc w:val="left"/></w:pPr><w:r><w:t>placeholder</w:t></w:r></w:p></w:tc><w:tc/></w:tr>` +
		`</w:tbl>` +
		`<w:p id="CHART"><w:r><w:drawing><wp:inline><wp:extent cx="6000" cy="3000"/><a:graphic><a:graphicData><pic:pic>` +
		`<pic:blipFill><a:blip r:embed="rIdImg"/></pic:blipFill>` +
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="6000" cy="3000"/></a:xfrm></pic:spPr>` +
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>` +
		`</w:body></w:document>`

	fixtureFooter = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:ftr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t id="PERIOD">period</w:t></w:r></w:p></w:ftr>`

	fixtureRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rIdRun" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="http://ci/job/nightly/1/" TargetMode="External"/>` +
		`<Relationship Id="rIdImg" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>` +
		`</Relationships>`

	fixtureContentTypes = `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`
)

// writeTemplateDir lays out an unpacked template below dir.
func writeTemplateDir(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()

	files := map[string]string{
		ContentTypesPart:        fixtureContentTypes,
		DocumentPart:            fixtureBody,
		FooterPart:              fixtureFooter,
		RelationshipsPart:       fixtureRels,
		"word/media/image1.png": string(testPNG(t, 20, 10)),
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, dir+"/"+name, []byte(content), 0o644))
	}
}

// newTestDocument prepares a workspace from the fixture template and opens it.
func newTestDocument(t *testing.T) (*Document, *Workspace) {
	t.Helper()

	fs := afero.NewMemMapFs()
	writeTemplateDir(t, fs, "/template")

	ws, err := NewWorkspace(fs, WorkspaceOptions{
		Template: "/template",
		Dir:      "/work",
		Output:   "/out/report.docx",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	require.NoError(t, ws.Prepare())

	doc, err := OpenDocument(ws, DefaultStyle())
	require.NoError(t, err)
	return doc, ws
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil))
	return buf.Bytes()
}

func toString(t *testing.T, el *etree.Element) string {
	t.Helper()
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}

// texts concatenates every w:t below el.
func texts(el *etree.Element) string {
	var sb strings.Builder
	for _, t := range el.FindElements(".//t") {
		sb.WriteString(t.Text())
	}
	return sb.String()
}

// recordingLinks is a LinkCreator that hands out predictable ids.
type recordingLinks struct {
	urls []string
	err  error
}

func (r *recordingLinks) Create(url string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.urls = append(r.urls, url)
	return RelationshipID(url), nil
}
