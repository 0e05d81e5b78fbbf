package docx

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

// RowTemplate is the detached template row of a growable table. The
// snapshot itself is never inserted; every row comes from a deep copy.
type RowTemplate struct {
	table    *etree.Element
	anchor   string
	snapshot *etree.Element
}

// SnapshotRows detaches the template row of table. The table must consist
// of exactly one header row followed by exactly one template row.
func SnapshotRows(table *etree.Element, anchor string) (*RowTemplate, error) {
	if table == nil || table.Tag != "tbl" {
		return nil, NewStructureError(anchor, "anchor is not a table")
	}

	rows := xml.Children(table, "tr")
	if len(rows) != 2 {
		return nil, NewStructureError(anchor, fmt.Sprintf("expected a header row and one template row, found %d rows", len(rows)))
	}

	template := rows[1]
	table.RemoveChild(template)

	return &RowTemplate{table: table, anchor: anchor, snapshot: template}, nil
}

// Row is a freshly cloned table row being filled.
type Row struct {
	el    *etree.Element
	cells []*etree.Element
}

// Element returns the w:tr element.
func (r *Row) Element() *etree.Element { return r.el }

// Cells returns the row's w:tc elements.
func (r *Row) Cells() []*etree.Element { return r.cells }

// Cell returns cell i, or a structure error when the template row is too
// narrow.
func (r *Row) Cell(i int) (*etree.Element, error) {
	if i < 0 || i >= len(r.cells) {
		return nil, NewStructureError("", fmt.Sprintf("row has %d cells, cell %d requested", len(r.cells), i))
	}
	return r.cells[i], nil
}

// Append clones the snapshot, lets fill populate it and appends it to the
// table body.
func (t *RowTemplate) Append(fill func(row *Row) error) error {
	clone := t.snapshot.Copy()
	row := &Row{el: clone, cells: xml.Children(clone, "tc")}

	if fill != nil {
		if err := fill(row); err != nil {
			return err
		}
	}

	t.table.AddChild(clone)
	return nil
}

// GrowTable replaces the template row of table with n filled copies, in
// order. With n == 0 only the header remains.
func GrowTable(table *etree.Element, anchor string, n int, fill func(i int, row *Row) error) error {
	tmpl, err := SnapshotRows(table, anchor)
	if err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		if err := tmpl.Append(func(row *Row) error { return fill(i, row) }); err != nil {
			return fmt.Errorf("row %d of %s: %w", i, anchor, err)
		}
	}
	return nil
}

// SetCell appends content to the first paragraph of cell, creating the
// paragraph when the cell has none.
func (c *Composer) SetCell(cell *etree.Element, content Content) error {
	p := xml.FirstChild(cell, "p")
	if p == nil {
		p = cell.CreateElement("w:p")
	}
	return c.Append(p, content)
}

// ClearCell removes everything from the cell's first paragraph except its
// properties.
func ClearCell(cell *etree.Element) {
	p := xml.FirstChild(cell, "p")
	if p == nil {
		return
	}
	for _, child := range p.ChildElements() {
		if child.Tag != "pPr" {
			p.RemoveChild(child)
		}
	}
}
