package xml

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
	"golang.org/x/net/html/charset"
)

// Encoding is the encoding written parts declare. A part whose comments or
// processing instructions carry non-ASCII text declares FallbackEncoding.
const (
	Encoding         = "ASCII"
	FallbackEncoding = "UTF-8"
)

var standalonePattern = regexp.MustCompile(`standalone\s*=\s*["'](yes|no)["']`)

// Part is a parsed XML part of a document package.
type Part struct {
	// Path is the location the part was loaded from, if any.
	Path string
	doc  *etree.Document
}

// NewPart wraps an existing etree document.
func NewPart(doc *etree.Document) *Part {
	return &Part{doc: doc}
}

// Load reads and parses the part stored at path.
func Load(fs afero.Fs, path string) (*Part, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", path, err)
	}
	defer f.Close()

	part, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse part %s: %w", path, err)
	}
	part.Path = path
	return part, nil
}

// Parse reads a part from r. Parts written by this package declare ASCII, so
// any declared encoding is decoded through the charset package.
func Parse(r io.Reader) (*Part, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, err
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("part has no root element")
	}
	return &Part{doc: doc}, nil
}

// Root returns the root element of the part.
func (p *Part) Root() *etree.Element {
	return p.doc.Root()
}

// Document returns the underlying etree document.
func (p *Part) Document() *etree.Document {
	return p.doc
}

// Bytes serializes the part with an XML declaration and ASCII encoding.
// Characters outside ASCII in text and attribute values are written as
// numeric character references.
func (p *Part) Bytes() ([]byte, error) {
	data, err := p.serialize(Encoding)
	if err != nil {
		return nil, err
	}
	out, verbatim := escapeNonASCII(data)
	if !verbatim {
		return out, nil
	}

	if data, err = p.serialize(FallbackEncoding); err != nil {
		return nil, err
	}
	out, _ = escapeNonASCII(data)
	return out, nil
}

func (p *Part) serialize(encoding string) ([]byte, error) {
	p.setDeclaration(encoding)

	var buf bytes.Buffer
	if _, err := p.doc.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes the part to path, replacing any existing file.
func (p *Part) Write(fs afero.Fs, path string) error {
	data, err := p.Bytes()
	if err != nil {
		return fmt.Errorf("failed to serialize part %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write part %s: %w", path, err)
	}
	return nil
}

// setDeclaration rewrites (or adds) the leading xml declaration so that it
// names encoding. A standalone pseudo-attribute is kept.
func (p *Part) setDeclaration(encoding string) {
	inst := `version="1.0" encoding="` + encoding + `"`

	for _, tok := range p.doc.Child {
		pi, ok := tok.(*etree.ProcInst)
		if !ok || pi.Target != "xml" {
			continue
		}
		if m := standalonePattern.FindStringSubmatch(pi.Inst); m != nil {
			inst += ` standalone="` + m[1] + `"`
		}
		pi.Inst = inst
		return
	}

	pi := p.doc.CreateProcInst("xml", inst)
	p.doc.RemoveChild(pi)
	p.doc.InsertChildAt(0, pi)
}

// verbatimSections are copied unchanged by EscapeNonASCII: character
// references are not expanded inside them.
var verbatimSections = []struct{ open, close string }{
	{"<!--", "-->"},
	{"<![CDATA[", "]]>"},
	{"<?", "?>"},
}

// EscapeNonASCII replaces every rune above 0x7F in text and attribute values
// with a decimal character reference. Comments, CDATA sections and
// processing instructions are left as they are.
func EscapeNonASCII(data []byte) []byte {
	out, _ := escapeNonASCII(data)
	return out
}

// escapeNonASCII also reports whether a verbatim section kept non-ASCII
// bytes.
func escapeNonASCII(data []byte) ([]byte, bool) {
	ascii := true
	for _, b := range data {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return data, false
	}

	verbatim := false
	out := make([]byte, 0, len(data)+len(data)/8)
	for len(data) > 0 {
		if data[0] == '<' {
			if n := verbatimLen(data); n > 0 {
				if !verbatim && bytes.IndexFunc(data[:n], func(r rune) bool { return r >= utf8.RuneSelf }) >= 0 {
					verbatim = true
				}
				out = append(out, data[:n]...)
				data = data[n:]
				continue
			}
		}
		if data[0] < utf8.RuneSelf {
			out = append(out, data[0])
			data = data[1:]
			continue
		}
		r, size := utf8.DecodeRune(data)
		out = append(out, "&#"...)
		out = strconv.AppendInt(out, int64(r), 10)
		out = append(out, ';')
		data = data[size:]
	}
	return out, verbatim
}

// verbatimLen returns the length of the verbatim section at the start of
// data, or 0. An unterminated section runs to the end of data.
func verbatimLen(data []byte) int {
	for _, sec := range verbatimSections {
		if !bytes.HasPrefix(data, []byte(sec.open)) {
			continue
		}
		end := bytes.Index(data[len(sec.open):], []byte(sec.close))
		if end < 0 {
			return len(data)
		}
		return len(sec.open) + end + len(sec.close)
	}
	return 0
}
