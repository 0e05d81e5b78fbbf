package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/spf13/afero"

	"github.com/benjaminschreck/go-docreport/pkg/docx/xml"
)

// ImagePath returns the working-copy path of the picture embedded in el,
// following the a:blip r:embed relationship.
func (d *Document) ImagePath(el *etree.Element) (string, error) {
	blip := xml.FirstDescendant(el, "blip")
	if blip == nil {
		return "", NewStructureError(anchorOf(el), "element contains no picture")
	}
	id, ok := xml.NamespacedAttr(blip, "r", "embed")
	if !ok {
		return "", NewStructureError(anchorOf(el), "picture has no embedded relationship")
	}

	target, err := d.rels.ResolveImage(id)
	if err != nil {
		return "", err
	}

	part, ok := packagePath(target)
	if !ok {
		return "", NewStructureError(anchorOf(el), fmt.Sprintf("picture target %q lies outside the package", target))
	}
	return d.ws.Path(part), nil
}

// packagePath maps a relationship target of the document part to a path
// inside the package. A leading slash makes the target package-absolute,
// anything else is relative to the document part's directory.
func packagePath(target string) (string, bool) {
	var part string
	if strings.HasPrefix(target, "/") {
		part = path.Clean(strings.TrimPrefix(target, "/"))
	} else {
		part = path.Clean(path.Join(path.Dir(DocumentPart), target))
	}
	if part == "." || part == ".." || strings.HasPrefix(part, "../") {
		return "", false
	}
	return part, true
}

// imageFormats maps picture extensions to the format names image.DecodeConfig
// reports.
var imageFormats = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
}

// ReplaceImage overwrites the picture embedded in el with the image file
// src and adjusts the picture's height to the new aspect ratio. The width
// set in the template is kept. The image must be encoded in the format the
// picture's extension names, since the package declares content types by
// extension.
func (d *Document) ReplaceImage(el *etree.Element, src string) error {
	fs := d.ws.Fs()

	data, err := afero.ReadFile(fs, src)
	if err != nil {
		return NewDocumentError("read image", src, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return NewDocumentError("decode image", src, err)
	}

	dst, err := d.ImagePath(el)
	if err != nil {
		return err
	}
	ext := strings.ToLower(path.Ext(dst))
	if imageFormats[ext] != format {
		return NewStructureError(anchorOf(el), fmt.Sprintf("%s image %s cannot replace %s picture %s", format, src, ext, path.Base(dst)))
	}
	if err := afero.WriteFile(fs, dst, data, 0o644); err != nil {
		return NewDocumentError("write image", dst, err)
	}

	d.log.Debug().Str("src", src).Str("dst", dst).
		Int("width", cfg.Width).Int("height", cfg.Height).
		Msg("image replaced")

	return AdjustExtent(el, cfg.Width, cfg.Height)
}

// AdjustExtent recomputes the height of the picture in el from its
// current width so that it matches width:height. Both the drawing extent
// and the shape transform are updated when present.
func AdjustExtent(el *etree.Element, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}

	xfrm := xml.FirstDescendant(el, "xfrm")
	if xfrm == nil {
		return NewStructureError(anchorOf(el), "picture has no transform")
	}
	ext := xml.FirstChild(xfrm, "ext")
	if ext == nil {
		return NewStructureError(anchorOf(el), "picture transform has no extent")
	}

	cx, err := strconv.ParseInt(ext.SelectAttrValue("cx", ""), 10, 64)
	if err != nil {
		return NewStructureError(anchorOf(el), fmt.Sprintf("invalid picture width: %v", err))
	}
	cy := strconv.FormatInt(cx*int64(height)/int64(width), 10)

	ext.CreateAttr("cy", cy)
	if extent := xml.FirstDescendant(el, "extent"); extent != nil {
		extent.CreateAttr("cy", cy)
	}
	return nil
}

func anchorOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	id, _ := xml.AnchorID(el)
	return id
}
