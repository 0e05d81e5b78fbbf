package docx

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_ImagePath(t *testing.T) {
	doc, ws := newTestDocument(t)

	chart, ok := doc.Find("CHART")
	require.True(t, ok)

	p, err := doc.ImagePath(chart)
	require.NoError(t, err)
	assert.Equal(t, ws.Path("word/media/image1.png"), p)

	_, err = doc.ImagePath(etree.NewElement("w:p"))
	assert.True(t, IsStructureError(err))
}

func TestDocument_ImagePathTargets(t *testing.T) {
	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr func(error) bool
	}{
		{
			name: "relative to the document part",
			rel:  `Target="media/image1.png"`,
			want: "word/media/image1.png",
		},
		{
			name: "package absolute",
			rel:  `Target="/word/media/image1.png"`,
			want: "word/media/image1.png",
		},
		{
			name: "package absolute outside word",
			rel:  `Target="/media/chart.png"`,
			want: "media/chart.png",
		},
		{
			name:    "escapes the package",
			rel:     `Target="../../chart.png"`,
			wantErr: IsStructureError,
		},
		{
			name:    "linked picture",
			rel:     `Target="http://charts/latency.png" TargetMode="External"`,
			wantErr: IsReferenceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, ws := newTestDocument(t)
			rels := strings.Replace(fixtureRels, `Target="media/image1.png"`, tt.rel, 1)
			require.NoError(t, afero.WriteFile(ws.Fs(), ws.Path(RelationshipsPart), []byte(rels), 0o644))

			chart, _ := doc.Find("CHART")
			p, err := doc.ImagePath(chart)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ws.Path(tt.want), p)
		})
	}
}

func TestDocument_ImagePathRejectsHyperlinks(t *testing.T) {
	doc, ws := newTestDocument(t)
	rels := strings.Replace(fixtureRels, `Id="rIdImg"`, `Id="rIdOld"`, 1)
	rels = strings.Replace(rels, `Id="rIdRun"`, `Id="rIdImg"`, 1)
	require.NoError(t, afero.WriteFile(ws.Fs(), ws.Path(RelationshipsPart), []byte(rels), 0o644))

	chart, _ := doc.Find("CHART")
	_, err := doc.ImagePath(chart)
	assert.True(t, IsReferenceError(err))
}

func TestDocument_ReplaceImage(t *testing.T) {
	doc, ws := newTestDocument(t)
	fs := ws.Fs()

	replacement := testPNG(t, 40, 10)
	require.NoError(t, afero.WriteFile(fs, "/charts/latency.png", replacement, 0o644))

	chart, ok := doc.Find("CHART")
	require.True(t, ok)
	require.NoError(t, doc.ReplaceImage(chart, "/charts/latency.png"))

	written, err := afero.ReadFile(fs, ws.Path("word/media/image1.png"))
	require.NoError(t, err)
	assert.Equal(t, replacement, written)

	// Width 6000 is kept, height follows the 4:1 aspect ratio.
	ext := chart.FindElement(".//xfrm/ext")
	assert.Equal(t, "6000", ext.SelectAttrValue("cx", ""))
	assert.Equal(t, "1500", ext.SelectAttrValue("cy", ""))
	assert.Equal(t, "1500", chart.FindElement(".//inline/extent").SelectAttrValue("cy", ""))
}

func TestDocument_ReplaceImageErrors(t *testing.T) {
	doc, ws := newTestDocument(t)
	chart, _ := doc.Find("CHART")

	err := doc.ReplaceImage(chart, "/missing.png")
	assert.True(t, IsDocumentError(err))

	require.NoError(t, afero.WriteFile(ws.Fs(), "/bad.png", []byte("not an image"), 0o644))
	err = doc.ReplaceImage(chart, "/bad.png")
	assert.True(t, IsDocumentError(err))
}

func TestDocument_ReplaceImageFormatMismatch(t *testing.T) {
	doc, ws := newTestDocument(t)
	fs := ws.Fs()

	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, image.NewPaletted(image.Rect(0, 0, 4, 4), color.Palette{color.Black, color.White}), nil))
	require.NoError(t, afero.WriteFile(fs, "/charts/latency.gif", buf.Bytes(), 0o644))
	// Extension alone does not decide: the bytes are still a GIF.
	require.NoError(t, afero.WriteFile(fs, "/charts/renamed.png", buf.Bytes(), 0o644))

	chart, _ := doc.Find("CHART")
	before, err := afero.ReadFile(fs, ws.Path("word/media/image1.png"))
	require.NoError(t, err)

	for _, src := range []string{"/charts/latency.gif", "/charts/renamed.png"} {
		err := doc.ReplaceImage(chart, src)
		assert.True(t, IsStructureError(err), src)
		assert.Contains(t, err.Error(), "gif image")
	}

	after, err := afero.ReadFile(fs, ws.Path("word/media/image1.png"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "picture is left untouched")
	assert.Equal(t, "3000", chart.FindElement(".//xfrm/ext").SelectAttrValue("cy", ""))
}

func TestDocument_ReplaceImageJPEGExtensions(t *testing.T) {
	for _, ext := range []string{"jpg", "JPEG"} {
		t.Run(ext, func(t *testing.T) {
			doc, ws := newTestDocument(t)
			fs := ws.Fs()
			rels := strings.Replace(fixtureRels, "media/image1.png", "media/image1."+ext, 1)
			require.NoError(t, afero.WriteFile(fs, ws.Path(RelationshipsPart), []byte(rels), 0o644))
			require.NoError(t, afero.WriteFile(fs, "/chart.jpg", testJPEG(t, 30, 10), 0o644))

			chart, _ := doc.Find("CHART")
			require.NoError(t, doc.ReplaceImage(chart, "/chart.jpg"))
			assert.Equal(t, "2000", chart.FindElement(".//xfrm/ext").SelectAttrValue("cy", ""))
		})
	}
}

func TestAdjustExtent(t *testing.T) {
	tests := []struct {
		name    string
		xml     string
		w, h    int
		wantCy  string
		wantErr bool
	}{
		{
			name:   "portrait",
			xml:    `<p><xfrm><ext cx="1000" cy="1"/></xfrm></p>`,
			w:      10,
			h:      20,
			wantCy: "2000",
		},
		{
			name:   "truncates",
			xml:    `<p><xfrm><ext cx="1000" cy="1"/></xfrm></p>`,
			w:      3,
			h:      1,
			wantCy: "333",
		},
		{
			name:    "no transform",
			xml:     `<p/>`,
			w:       1,
			h:       1,
			wantErr: true,
		},
		{
			name:    "zero size",
			xml:     `<p><xfrm><ext cx="1000" cy="1"/></xfrm></p>`,
			w:       0,
			h:       1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := etree.NewDocument()
			require.NoError(t, doc.ReadFromString(tt.xml))

			err := AdjustExtent(doc.Root(), tt.w, tt.h)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCy, doc.Root().FindElement(".//ext").SelectAttrValue("cy", ""))
		})
	}
}
