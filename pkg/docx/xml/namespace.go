package xml

import (
	"github.com/beevik/etree"
)

// Namespace URIs used by the parts the assembler touches.
const (
	NamespaceW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NamespaceR       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceXML     = "http://www.w3.org/XML/1998/namespace"
	NamespaceA       = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NamespacePackage = "http://schemas.openxmlformats.org/package/2006/relationships"
)

// prefixes maps the conventional prefix of every namespace we may emit to its URI.
var prefixes = map[string]string{
	"w":   NamespaceW,
	"r":   NamespaceR,
	"xml": NamespaceXML,
	"a":   NamespaceA,
	"wp":  "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing",
	"pic": "http://schemas.openxmlformats.org/drawingml/2006/picture",
	"w14": "http://schemas.microsoft.com/office/word/2010/wordml",
	"mc":  "http://schemas.openxmlformats.org/markup-compatibility/2006",
}

// EnsureNamespaces declares the given prefixes on root when the part does
// not declare them yet. The reserved xml prefix is never declared.
//
// A prefix already bound to a different URI is left untouched; the caller
// will get a mismatch from the consuming viewer, not a silent rebinding.
func EnsureNamespaces(root *etree.Element, names ...string) {
	if root == nil {
		return
	}
	for _, name := range names {
		if name == "xml" {
			continue
		}
		uri, ok := prefixes[name]
		if !ok {
			continue
		}
		if root.SelectAttr("xmlns:"+name) != nil {
			continue
		}
		root.CreateAttr("xmlns:"+name, uri)
	}
}
