package xml

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

// AnchorAttr is the un-namespaced attribute template authors use to name
// insertion points. Namespaced attributes such as r:id are not anchors.
const AnchorAttr = "id"

// ErrAnchorNotFound is returned by Lookup for ids that do not resolve.
var ErrAnchorNotFound = errors.New("anchor not found")

// Index maps anchor ids to elements. It is built once per loaded part.
type Index struct {
	elements   map[string]*etree.Element
	duplicates []string
}

// NewIndex walks root in document order and records the first element
// carrying each anchor id.
func NewIndex(root *etree.Element) *Index {
	idx := &Index{elements: make(map[string]*etree.Element)}
	if root != nil {
		idx.add(root)
	}
	return idx
}

func (idx *Index) add(el *etree.Element) {
	if id, ok := AnchorID(el); ok {
		if _, seen := idx.elements[id]; seen {
			idx.duplicates = append(idx.duplicates, id)
		} else {
			idx.elements[id] = el
		}
	}
	for _, child := range el.ChildElements() {
		idx.add(child)
	}
}

// AnchorID returns the anchor id carried by el, if any.
func AnchorID(el *etree.Element) (string, bool) {
	for _, attr := range el.Attr {
		if attr.Space == "" && attr.Key == AnchorAttr {
			return attr.Value, true
		}
	}
	return "", false
}

// Find returns the element registered under id.
func (idx *Index) Find(id string) (*etree.Element, bool) {
	el, ok := idx.elements[id]
	return el, ok
}

// Lookup is Find for code running after validation: a miss means the
// template changed underneath the run and is reported as an error.
func (idx *Index) Lookup(id string) (*etree.Element, error) {
	el, ok := idx.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnchorNotFound, id)
	}
	return el, nil
}

// Validate reports whether every id in ids resolves.
func (idx *Index) Validate(ids []string) bool {
	return len(idx.Missing(ids)) == 0
}

// Missing returns the ids that do not resolve, in request order.
func (idx *Index) Missing(ids []string) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := idx.elements[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Duplicates returns ids that appeared more than once while indexing.
func (idx *Index) Duplicates() []string {
	return idx.duplicates
}

// Forget drops id from the index. Used when the anchor element is removed.
func (idx *Index) Forget(id string) {
	delete(idx.elements, id)
}

// Len returns the number of indexed anchors.
func (idx *Index) Len() int {
	return len(idx.elements)
}
