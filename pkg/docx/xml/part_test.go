package xml

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
	`<w:body><w:p id="HEADER"><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t xml:space="preserve">Weekly </w:t></w:r>` +
	`<w:hyperlink r:id="rId7" id="LINK"><w:r><w:t>Build #1</w:t></w:r></w:hyperlink></w:p></w:body></w:document>`

func TestPart_RoundTripPreservesContent(t *testing.T) {
	tests := []struct {
		name        string
		declaration string
		wantDecl    string
	}{
		{
			name:        "utf-8 declaration becomes ascii",
			declaration: `<?xml version="1.0" encoding="UTF-8"?>`,
			wantDecl:    `<?xml version="1.0" encoding="ASCII"?>`,
		},
		{
			name:        "standalone is kept",
			declaration: `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`,
			wantDecl:    `<?xml version="1.0" encoding="ASCII" standalone="yes"?>`,
		},
		{
			name:        "missing declaration is added",
			declaration: "",
			wantDecl:    `<?xml version="1.0" encoding="ASCII"?>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := Parse(strings.NewReader(tt.declaration + sampleBody))
			require.NoError(t, err)

			out, err := part.Bytes()
			require.NoError(t, err)

			got := string(out)
			require.True(t, strings.HasPrefix(got, tt.wantDecl), "declaration: %s", got)
			if diff := cmp.Diff(sampleBody, strings.TrimPrefix(got, tt.wantDecl)); diff != "" {
				t.Errorf("body changed on round trip (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPart_NonASCIIIsEscaped(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?><w:t xmlns:w="` + NamespaceW + `" title="Отчёт">12 — 19 März</w:t>`

	part, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	out, err := part.Bytes()
	require.NoError(t, err)

	for _, b := range out {
		require.Less(t, b, byte(0x80), "output must be pure ASCII")
	}
	assert.Contains(t, string(out), "12 &#8212; 19 M&#228;rz")
	assert.Contains(t, string(out), `title="&#1054;&#1090;&#1095;&#1105;&#1090;"`)

	// The ASCII declaration must be readable again and decode to the same text.
	again, err := Parse(strings.NewReader(string(out)))
	require.NoError(t, err)
	assert.Equal(t, "12 — 19 März", again.Root().Text())
	assert.Equal(t, "Отчёт", again.Root().SelectAttrValue("title", ""))
	assert.Contains(t, string(out), `encoding="ASCII"`)
}

func TestEscapeNonASCII(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ascii", in: `<w:t>plain</w:t>`, want: `<w:t>plain</w:t>`},
		{name: "text and attribute", in: `<w:t a="é">ü</w:t>`, want: `<w:t a="&#233;">&#252;</w:t>`},
		{name: "comment", in: `<!-- café --><w:t>é</w:t>`, want: `<!-- café --><w:t>&#233;</w:t>`},
		{name: "processing instruction", in: `<?mso-application progid="Wörd"?>`, want: `<?mso-application progid="Wörd"?>`},
		{name: "cdata", in: `<w:t><![CDATA[naïve]]></w:t>`, want: `<w:t><![CDATA[naïve]]></w:t>`},
		{name: "unterminated comment", in: `<w:t>ä</w:t><!-- ä`, want: `<w:t>&#228;</w:t><!-- ä`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(EscapeNonASCII([]byte(tt.in))))
		})
	}
}

func TestPart_CommentsSurviveRoundTrip(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?><!-- café --><w:t xmlns:w="` + NamespaceW + `">Grüße</w:t>`

	part, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	out, err := part.Bytes()
	require.NoError(t, err)

	assert.Contains(t, string(out), "<!-- café -->")
	assert.Contains(t, string(out), "Gr&#252;&#223;e")
	assert.Contains(t, string(out), `encoding="`+FallbackEncoding+`"`)

	again, err := Parse(strings.NewReader(string(out)))
	require.NoError(t, err)
	assert.Equal(t, "Grüße", again.Root().Text())
	second, err := again.Bytes()
	require.NoError(t, err)
	assert.Equal(t, string(out), string(second))
}

func TestPart_WriteAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pkg/word/document.xml", []byte(sampleBody), 0o644))

	part, err := Load(fs, "/pkg/word/document.xml")
	require.NoError(t, err)
	assert.Equal(t, "/pkg/word/document.xml", part.Path)

	require.NoError(t, part.Write(fs, "/pkg/word/document.xml"))
	require.NoError(t, part.Write(fs, "/pkg/word/document.xml"))

	first, err := afero.ReadFile(fs, "/pkg/word/document.xml")
	require.NoError(t, err)

	reloaded, err := Load(fs, "/pkg/word/document.xml")
	require.NoError(t, err)
	second, err := reloaded.Bytes()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "write(load(p)) must be stable")
	assert.Equal(t, "w", reloaded.Root().Space)
	assert.Equal(t, NamespaceR, reloaded.Root().SelectAttrValue("xmlns:r", ""))
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/broken.xml", []byte("<w:document><w:body>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/empty.xml", []byte(`<?xml version="1.0"?>`), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: "/nope.xml"},
		{name: "truncated xml", path: "/broken.xml"},
		{name: "no root element", path: "/empty.xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(fs, tt.path)
			assert.Error(t, err)
		})
	}
}

func TestEnsureNamespaces(t *testing.T) {
	part, err := Parse(strings.NewReader(`<Relationships xmlns="` + NamespacePackage + `"/>`))
	require.NoError(t, err)

	EnsureNamespaces(part.Root(), "w", "r", "xml", "unknown")
	EnsureNamespaces(part.Root(), "w")

	root := part.Root()
	assert.Equal(t, NamespacePackage, root.SelectAttrValue("xmlns", ""))
	assert.Equal(t, NamespaceW, root.SelectAttrValue("xmlns:w", ""))
	assert.Equal(t, NamespaceR, root.SelectAttrValue("xmlns:r", ""))
	assert.Nil(t, root.SelectAttr("xmlns:xml"))
	assert.Nil(t, root.SelectAttr("xmlns:unknown"))
	assert.Len(t, root.Attr, 3, "w is declared once")
}
