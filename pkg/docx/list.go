package docx

import (
	"github.com/beevik/etree"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

// GrowBulletList inserts one bullet paragraph per item right after anchor,
// each after the previous one, all sharing the style's list id. With no
// items the anchor paragraph itself is removed.
func (c *Composer) GrowBulletList(anchor *etree.Element, anchorID string, items []string) error {
	if anchor == nil || anchor.Parent() == nil {
		return NewStructureError(anchorID, "list header is not attached to the document")
	}

	if len(items) == 0 {
		return xml.Remove(anchor)
	}

	props := xml.BulletProperties{
		Style:  c.style.BulletStyle,
		Level:  c.style.BulletLevel,
		ListID: c.style.ListID,
	}

	prev := anchor
	for _, item := range items {
		bullet := xml.NewBullet(props)
		if err := c.Append(bullet, Plain(item)); err != nil {
			return err
		}
		if err := xml.InsertAfter(bullet, prev); err != nil {
			return NewStructureError(anchorID, err.Error())
		}
		prev = bullet
	}
	return nil
}
