package docx

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

// Content is a logical value the Composer turns into document markup.
// Implementations: Plain, Styled, Link, Fragment and Seq.
type Content interface {
	isContent()
}

// Plain is text written with the default run formatting.
type Plain string

// Styled is text with explicit weight and color.
type Styled struct {
	Text  string
	Bold  bool
	Color string // hex RGB, '#' optional; empty means the default color
}

// Link is an external hyperlink labelled Text.
type Link struct {
	URL  string
	Text string
}

// Fragment is markup that is appended as-is.
type Fragment struct {
	Element *etree.Element
}

// Seq renders its items in order.
type Seq []Content

func (Plain) isContent()    {}
func (Styled) isContent()   {}
func (Link) isContent()     {}
func (Fragment) isContent() {}
func (Seq) isContent()      {}

// Style holds the run and paragraph formatting the template expects.
type Style struct {
	Font           string `yaml:"font"`
	EastAsiaFont   string `yaml:"east_asia_font"`
	Size           int    `yaml:"size"`
	Color          string `yaml:"color"`
	HyperlinkStyle string `yaml:"hyperlink_style"`
	BulletStyle    string `yaml:"bullet_style"`
	BulletLevel    int    `yaml:"bullet_level"`
	ListID         int    `yaml:"list_id"`
}

// DefaultStyle returns the formatting of the stock report template.
func DefaultStyle() Style {
	return Style{
		Font:           "Segoe UI",
		EastAsiaFont:   "Times New Roman",
		Size:           21,
		Color:          "242424",
		HyperlinkStyle: "aa",
		BulletStyle:    "a9",
		BulletLevel:    0,
		ListID:         1,
	}
}

// LinkCreator hands out relationship ids for external targets.
type LinkCreator interface {
	Create(url string) (string, error)
}

// Composer is the single place where report values become runs and
// hyperlinks.
type Composer struct {
	links LinkCreator
	style Style
}

// NewComposer creates a composer that registers hyperlinks through links.
func NewComposer(links LinkCreator, style Style) *Composer {
	return &Composer{links: links, style: style}
}

// Append renders content into target, preserving order.
func (c *Composer) Append(target *etree.Element, content Content) error {
	switch v := content.(type) {
	case nil:
		return nil
	case Seq:
		for _, item := range v {
			if err := c.Append(target, item); err != nil {
				return err
			}
		}
	case Fragment:
		if v.Element == nil {
			return fmt.Errorf("empty fragment")
		}
		target.AddChild(v.Element)
	case Plain:
		target.AddChild(xml.NewRun(string(v), c.runProperties(false, "")))
	case Styled:
		target.AddChild(xml.NewRun(v.Text, c.runProperties(v.Bold, v.Color)))
	case Link:
		id, err := c.links.Create(v.URL)
		if err != nil {
			return fmt.Errorf("failed to create relationship for %s: %w", v.URL, err)
		}
		target.AddChild(xml.NewHyperlink(id, v.Text, c.hyperlinkProperties()))
	default:
		return fmt.Errorf("unsupported content type %T", content)
	}
	return nil
}

func (c *Composer) runProperties(bold bool, color string) xml.RunProperties {
	if color == "" {
		color = c.style.Color
	}
	return xml.RunProperties{
		Font:     c.style.Font,
		EastAsia: c.style.EastAsiaFont,
		Size:     c.style.Size,
		Bold:     bold,
		Color:    color,
	}
}

func (c *Composer) hyperlinkProperties() xml.RunProperties {
	return xml.RunProperties{
		Style:    c.style.HyperlinkStyle,
		Font:     c.style.Font,
		EastAsia: c.style.EastAsiaFont,
		Size:     c.style.Size,
	}
}
