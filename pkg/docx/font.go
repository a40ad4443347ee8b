package docx

import (
	"math"
	"strconv"
)

// rPr children that must follow w:sz in schema order.
var afterSize = []string{
	"szCs", "highlight", "u", "effect", "bdr", "shd", "fitText", "vertAlign",
	"rtl", "cs", "em", "lang", "eastAsianLayout", "specVanish", "oMath",
}

// style children that must follow w:rPr in schema order.
var afterRunProps = []string{"tblPr", "trPr", "tcPr", "tblStylePr"}

// SetDefaultFont sets the font family (Latin and East Asian slots) and size
// of the default paragraph style. It reports false when the package has no
// styles part or no default paragraph style, leaving the document unchanged.
func (d *Document) SetDefaultFont(name string, sizePt float64) bool {
	if d.styles == nil {
		return false
	}
	w := d.stylesW
	stylesEl := d.styles.firstElement()
	if stylesEl == nil {
		return false
	}

	var normal *node
	for _, s := range stylesEl.childElements(w, "style") {
		typ, _ := s.attrValue(w, "type")
		if typ != "paragraph" {
			continue
		}
		if def, _ := s.attrValue(w, "default"); def == "1" || def == "true" {
			normal = s
			break
		}
		if id, _ := s.attrValue(w, "styleId"); id == "Normal" && normal == nil {
			normal = s
		}
	}
	if normal == nil {
		return false
	}

	rPr := normal.child(w, "rPr")
	if rPr == nil {
		rPr = newElement(w, "rPr")
		normal.insertBefore(rPr, w, afterRunProps...)
	}

	if name != "" {
		fonts := rPr.child(w, "rFonts")
		if fonts == nil {
			fonts = newElement(w, "rFonts")
			idx := 0
			if len(rPr.children) > 0 && rPr.children[0].is(w, "rStyle") {
				idx = 1
			}
			rPr.insertChild(idx, fonts)
		}
		fonts.setAttr(w, "ascii", name)
		fonts.setAttr(w, "hAnsi", name)
		fonts.setAttr(w, "eastAsia", name)
	}

	if sizePt > 0 {
		half := strconv.Itoa(int(math.Round(sizePt * 2)))
		sz := rPr.child(w, "sz")
		if sz == nil {
			sz = newElement(w, "sz")
			rPr.insertBefore(sz, w, afterSize...)
		}
		sz.setAttr(w, "val", half)
	}
	return true
}

// DefaultFont returns the font name and size in points of the default
// paragraph style, as far as they are set.
func (d *Document) DefaultFont() (string, float64) {
	if d.styles == nil || d.styles.firstElement() == nil {
		return "", 0
	}
	w := d.stylesW
	for _, s := range d.styles.firstElement().childElements(w, "style") {
		if def, _ := s.attrValue(w, "default"); def != "1" && def != "true" {
			continue
		}
		if typ, _ := s.attrValue(w, "type"); typ != "paragraph" {
			continue
		}
		rPr := s.child(w, "rPr")
		if rPr == nil {
			return "", 0
		}
		var name string
		var size float64
		if f := rPr.child(w, "rFonts"); f != nil {
			name, _ = f.attrValue(w, "eastAsia")
			if name == "" {
				name, _ = f.attrValue(w, "ascii")
			}
		}
		if sz := rPr.child(w, "sz"); sz != nil {
			v, _ := sz.attrValue(w, "val")
			if half, err := strconv.Atoi(v); err == nil {
				size = float64(half) / 2
			}
		}
		return name, size
	}
	return "", 0
}
