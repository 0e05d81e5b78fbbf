package docx

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/beevik/etree"
	"github.com/spf13/afero"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

const (
	hyperlinkRelationType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
	imageRelationType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	targetModeExternal    = "External"
)

// RelationshipID derives the relationship id for an external target. The
// same URL always yields the same id.
func RelationshipID(url string) string {
	sum := sha1.Sum([]byte(url))
	return "rId" + hex.EncodeToString(sum[:])
}

// Relationships manages a relationship part on disk. Every call reads the
// part, applies one change and writes it back.
type Relationships struct {
	fs   afero.Fs
	path string
}

// NewRelationships binds the manager to the relationship part at path.
func NewRelationships(fs afero.Fs, path string) *Relationships {
	return &Relationships{fs: fs, path: path}
}

// Create returns the id of a hyperlink relationship to url, adding the entry
// if the part does not contain it yet. An existing entry with the same id but
// another target is reported as a ReferenceError.
func (r *Relationships) Create(url string) (string, error) {
	id := RelationshipID(url)

	part, err := r.load()
	if err != nil {
		return "", err
	}

	if existing := findRelationship(part.Root(), id); existing != nil {
		if target := existing.SelectAttrValue("Target", ""); target != url {
			return "", &ReferenceError{ID: id, Message: fmt.Sprintf("already targets %q, not %q", target, url)}
		}
		return id, nil
	}

	rel := part.Root().CreateElement("Relationship")
	rel.CreateAttr("Id", id)
	rel.CreateAttr("Type", hyperlinkRelationType)
	rel.CreateAttr("Target", url)
	rel.CreateAttr("TargetMode", targetModeExternal)

	if err := r.save(part); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateTarget points the existing relationship id at url.
func (r *Relationships) UpdateTarget(id, url string) error {
	part, err := r.load()
	if err != nil {
		return err
	}

	rel := findRelationship(part.Root(), id)
	if rel == nil {
		return &ReferenceError{ID: id, Message: "relationship does not exist"}
	}
	rel.CreateAttr("Target", url)

	return r.save(part)
}

// Resolve returns the target of relationship id.
func (r *Relationships) Resolve(id string) (string, error) {
	part, err := r.load()
	if err != nil {
		return "", err
	}

	rel := findRelationship(part.Root(), id)
	if rel == nil {
		return "", &ReferenceError{ID: id, Message: "relationship does not exist"}
	}
	return rel.SelectAttrValue("Target", ""), nil
}

// ResolveImage returns the package target of image relationship id.
func (r *Relationships) ResolveImage(id string) (string, error) {
	part, err := r.load()
	if err != nil {
		return "", err
	}

	rel := findRelationship(part.Root(), id)
	switch {
	case rel == nil:
		return "", &ReferenceError{ID: id, Message: "relationship does not exist"}
	case rel.SelectAttrValue("Type", "") != imageRelationType:
		return "", &ReferenceError{ID: id, Message: "not an image relationship"}
	case rel.SelectAttrValue("TargetMode", "") == targetModeExternal:
		return "", &ReferenceError{ID: id, Message: "image is linked, not embedded"}
	}
	return rel.SelectAttrValue("Target", ""), nil
}

func (r *Relationships) load() (*xml.Part, error) {
	part, err := xml.Load(r.fs, r.path)
	if err != nil {
		return nil, NewDocumentError("load relationships", r.path, err)
	}
	return part, nil
}

func (r *Relationships) save(part *xml.Part) error {
	if err := part.Write(r.fs, r.path); err != nil {
		return NewDocumentError("write relationships", r.path, err)
	}
	return nil
}

func findRelationship(root *etree.Element, id string) *etree.Element {
	for _, el := range xml.Children(root, "Relationship") {
		if el.SelectAttrValue("Id", "") == id {
			return el
		}
	}
	return nil
}
