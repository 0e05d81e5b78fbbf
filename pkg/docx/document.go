package docx

import (
	"errors"
	"fmt"
	"os"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

// Document is the loaded, mutable view of a working copy: the body part,
// the footer part when the template has one, and the relationship part.
type Document struct {
	ws       *Workspace
	body     *xml.Part
	footer   *xml.Part
	bodyIdx  *xml.Index
	footIdx  *xml.Index
	rels     *Relationships
	composer *Composer
	log      zerolog.Logger
}

// OpenDocument loads the parts of a prepared workspace and indexes their
// anchors.
func OpenDocument(ws *Workspace, style Style) (*Document, error) {
	fs := ws.Fs()

	body, err := xml.Load(fs, ws.Path(DocumentPart))
	if err != nil {
		return nil, NewDocumentError("load", DocumentPart, err)
	}
	xml.EnsureNamespaces(body.Root(), "w", "r")

	var footer *xml.Part
	footerPath := ws.Path(FooterPart)
	if _, err := fs.Stat(footerPath); err == nil {
		footer, err = xml.Load(fs, footerPath)
		if err != nil {
			return nil, NewDocumentError("load", FooterPart, err)
		}
		xml.EnsureNamespaces(footer.Root(), "w", "r")
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, NewDocumentError("load", FooterPart, err)
	}

	rels := NewRelationships(fs, ws.Path(RelationshipsPart))

	d := &Document{
		ws:       ws,
		body:     body,
		footer:   footer,
		bodyIdx:  xml.NewIndex(body.Root()),
		rels:     rels,
		composer: NewComposer(rels, style),
		log:      ws.log,
	}
	if footer != nil {
		d.footIdx = xml.NewIndex(footer.Root())
	} else {
		d.footIdx = xml.NewIndex(nil)
	}

	d.log.Debug().
		Int("body_anchors", d.bodyIdx.Len()).
		Int("footer_anchors", d.footIdx.Len()).
		Msg("document loaded")
	return d, nil
}

// Composer returns the content composer bound to the document's
// relationships.
func (d *Document) Composer() *Composer { return d.composer }

// Relationships returns the relationship manager of the body part.
func (d *Document) Relationships() *Relationships { return d.rels }

// Body returns the root element of the body part.
func (d *Document) Body() *etree.Element { return d.body.Root() }

// Footer returns the root element of the footer part, or nil.
func (d *Document) Footer() *etree.Element {
	if d.footer == nil {
		return nil
	}
	return d.footer.Root()
}

// Find looks id up in the body, then in the footer.
func (d *Document) Find(id string) (*etree.Element, bool) {
	if el, ok := d.bodyIdx.Find(id); ok {
		return el, true
	}
	return d.footIdx.Find(id)
}

// Lookup is Find for ids that already passed Validate.
func (d *Document) Lookup(id string) (*etree.Element, error) {
	if el, ok := d.Find(id); ok {
		return el, nil
	}
	return nil, fmt.Errorf("%w: %s", xml.ErrAnchorNotFound, id)
}

// Forget drops id after its element was removed from the tree.
func (d *Document) Forget(id string) {
	d.bodyIdx.Forget(id)
	d.footIdx.Forget(id)
}

// Validate checks that every id resolves in body or footer. The error lists
// all missing ids at once, together with any duplicated anchor ids.
func (d *Document) Validate(ids []string) error {
	var missing []string
	if !d.bodyIdx.Validate(ids) {
		missing = d.footIdx.Missing(d.bodyIdx.Missing(ids))
	}

	var dups []string
	dups = append(dups, d.bodyIdx.Duplicates()...)
	dups = append(dups, d.footIdx.Duplicates()...)
	for _, id := range dups {
		d.log.Warn().Str("anchor", id).Msg("anchor id is not unique, using the first occurrence")
	}

	if len(missing) > 0 {
		return &TemplateError{Missing: missing, Duplicates: dups}
	}
	return nil
}

// Save writes body and footer back into the working copy. The relationship
// part is saved by each relationship change.
func (d *Document) Save() error {
	fs := d.ws.Fs()
	if err := d.body.Write(fs, d.ws.Path(DocumentPart)); err != nil {
		return NewDocumentError("write", DocumentPart, err)
	}
	if d.footer != nil {
		if err := d.footer.Write(fs, d.ws.Path(FooterPart)); err != nil {
			return NewDocumentError("write", FooterPart, err)
		}
	}
	return nil
}
