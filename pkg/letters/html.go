package letters

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

func parse(data []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse letter template: %w", err)
	}
	return doc, nil
}

// render serializes doc as ASCII; everything else becomes a numeric
// character reference.
func render(doc *html.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("failed to render letter: %w", err)
	}
	return xml.EscapeNonASCII(buf.Bytes()), nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// findElement returns the first element below n, in document order, with
// the given tag and, when id is not empty, that id.
func findElement(n *html.Node, tag atom.Atom, id string) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		if v, _ := attr(n, "id"); id == "" || v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag, id); found != nil {
			return found
		}
	}
	return nil
}

func childElements(n *html.Node, tag atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == tag {
			out = append(out, c)
		}
	}
	return out
}

// descend follows the first child with each tag in turn.
func descend(n *html.Node, tags ...atom.Atom) (*html.Node, error) {
	cur := n
	for i, tag := range tags {
		children := childElements(cur, tag)
		if len(children) == 0 {
			return nil, fmt.Errorf("template has no %s element at %s", tag, pathString(tags[:i+1]))
		}
		cur = children[0]
	}
	return cur, nil
}

func pathString(tags []atom.Atom) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = t.String()
	}
	return "./" + strings.Join(parts, "/")
}

func setText(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}

// insertAfter places n right after ref and returns n.
func insertAfter(ref, n *html.Node) *html.Node {
	ref.Parent.InsertBefore(n, ref.NextSibling)
	return n
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// detachRow removes and returns row i of tbody.
func detachRow(tbody *html.Node, i int) (*html.Node, error) {
	rows := childElements(tbody, atom.Tr)
	if i >= len(rows) {
		return nil, fmt.Errorf("table has %d rows, template row %d is missing", len(rows), i)
	}
	tbody.RemoveChild(rows[i])
	return rows[i], nil
}
