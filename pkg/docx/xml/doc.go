// Package xml provides the XML layer of the report assembler: loading and
// writing individual package parts, locating anchors, and building the
// WordprocessingML fragments the assembler inserts.
//
// # Structure Organization
//
//   - part.go: Part load/write with declaration and ASCII encoding fidelity
//   - namespace.go: Namespace URIs and the prefix table used for new elements
//   - anchor.go: Index of elements carrying a custom id attribute
//   - elements.go: Builders for runs, hyperlinks, bullets and tree helpers
//
// # Parts
//
// A Part wraps an etree document. Parts are owned by a single report run;
// nothing here is safe for concurrent mutation.
//
//	part, err := xml.Load(fs, "tmp/word/document.xml")
//	if err != nil {
//	    return err
//	}
//	idx := xml.NewIndex(part.Root())
//	if missing := idx.Missing(required); len(missing) > 0 {
//	    return fmt.Errorf("missing anchors: %v", missing)
//	}
//	...
//	err = part.Write(fs, "tmp/word/document.xml")
//
// # XML Namespaces
//
// Elements created by this package use fixed prefixes:
//   - w: WordprocessingML main namespace
//   - r: Office relationships namespace
//   - xml: the reserved XML namespace (xml:space)
//
// EnsureNamespaces declares them on a part's root element when missing.
package xml
