package xml

import (
	"errors"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// RunProperties describes the formatting written into a run's w:rPr.
type RunProperties struct {
	Style    string // w:rStyle, e.g. the hyperlink character style
	Font     string // ascii, hAnsi and cs font
	EastAsia string // eastAsia font
	Size     int    // half-points, written to w:sz and w:szCs
	Bold     bool
	Color    string // hex RGB without '#'
}

// NewRun builds a w:r carrying props and a single w:t with text.
func NewRun(text string, props RunProperties) *etree.Element {
	run := etree.NewElement("w:r")
	rPr := run.CreateElement("w:rPr")

	// Children follow the CT_RPr sequence order.
	if props.Style != "" {
		rPr.CreateElement("w:rStyle").CreateAttr("w:val", props.Style)
	}
	if props.Font != "" || props.EastAsia != "" {
		fonts := rPr.CreateElement("w:rFonts")
		if props.Font != "" {
			fonts.CreateAttr("w:ascii", props.Font)
		}
		if props.EastAsia != "" {
			fonts.CreateAttr("w:eastAsia", props.EastAsia)
		}
		if props.Font != "" {
			fonts.CreateAttr("w:hAnsi", props.Font)
			fonts.CreateAttr("w:cs", props.Font)
		}
	}
	if props.Bold {
		rPr.CreateElement("w:b")
		rPr.CreateElement("w:bCs")
	}
	if color := strings.TrimPrefix(props.Color, "#"); color != "" {
		rPr.CreateElement("w:color").CreateAttr("w:val", color)
	}
	if props.Size > 0 {
		size := strconv.Itoa(props.Size)
		rPr.CreateElement("w:sz").CreateAttr("w:val", size)
		rPr.CreateElement("w:szCs").CreateAttr("w:val", size)
	}

	run.AddChild(NewText(text))
	return run
}

// NewText builds a w:t. Leading or trailing whitespace is kept with
// xml:space="preserve".
func NewText(text string) *etree.Element {
	t := etree.NewElement("w:t")
	if text != strings.TrimSpace(text) {
		t.CreateAttr("xml:space", "preserve")
	}
	t.SetText(text)
	return t
}

// NewHyperlink builds a w:hyperlink pointing at relationship relID with a
// single styled run labelled text.
func NewHyperlink(relID, text string, props RunProperties) *etree.Element {
	link := etree.NewElement("w:hyperlink")
	link.CreateAttr("r:id", relID)
	link.AddChild(NewRun(text, props))
	return link
}

// BulletProperties describes a list paragraph.
type BulletProperties struct {
	Style  string // w:pStyle of the list paragraph
	Level  int    // w:ilvl
	ListID int    // w:numId shared by every item of one list
}

// NewBullet builds an empty list paragraph. Content is appended by the caller.
func NewBullet(props BulletProperties) *etree.Element {
	p := etree.NewElement("w:p")
	pPr := p.CreateElement("w:pPr")
	if props.Style != "" {
		pPr.CreateElement("w:pStyle").CreateAttr("w:val", props.Style)
	}
	numPr := pPr.CreateElement("w:numPr")
	numPr.CreateElement("w:ilvl").CreateAttr("w:val", strconv.Itoa(props.Level))
	numPr.CreateElement("w:numId").CreateAttr("w:val", strconv.Itoa(props.ListID))
	pPr.CreateElement("w:spacing").CreateAttr("w:after", "0")
	return p
}

var errDetached = errors.New("element has no parent")

// InsertAfter places el immediately after ref in ref's parent.
func InsertAfter(el, ref *etree.Element) error {
	parent := ref.Parent()
	if parent == nil {
		return errDetached
	}
	parent.InsertChildAt(ref.Index()+1, el)
	return nil
}

// Remove detaches el from its parent.
func Remove(el *etree.Element) error {
	parent := el.Parent()
	if parent == nil {
		return errDetached
	}
	parent.RemoveChild(el)
	return nil
}

// Children returns the direct children of el with the given local name,
// whatever their prefix.
func Children(el *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			out = append(out, child)
		}
	}
	return out
}

// FirstChild returns the first direct child with the given local name.
func FirstChild(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
	}
	return nil
}

// FirstDescendant returns the first element below el, in document order,
// with the given local name.
func FirstDescendant(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := FirstDescendant(child, local); found != nil {
			return found
		}
	}
	return nil
}

// NamespacedAttr returns the value of the attribute prefix:key on el.
// Unlike etree's SelectAttr, an empty prefix only matches un-prefixed
// attributes.
func NamespacedAttr(el *etree.Element, prefix, key string) (string, bool) {
	for _, attr := range el.Attr {
		if attr.Space == prefix && attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}
