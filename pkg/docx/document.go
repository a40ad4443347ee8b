package docx

import (
	"strings"
)

// Paragraph is a w:p element.
type Paragraph struct {
	n *node
	w string
}

// Table is a w:tbl element.
type Table struct {
	n *node
	w string
}

// Row is a w:tr element.
type Row struct {
	n *node
	w string
}

// Cell is a w:tc element.
type Cell struct {
	n *node
	w string
}

// Paragraphs returns the body-level paragraphs in document order. Paragraphs
// inside tables are reached through Tables.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, n := range d.body.childElements(d.w, "p") {
		out = append(out, &Paragraph{n: n, w: d.w})
	}
	return out
}

// Tables returns the body-level tables in document order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, n := range d.body.childElements(d.w, "tbl") {
		out = append(out, &Table{n: n, w: d.w})
	}
	return out
}

// run containers whose runs belong to the paragraph text.
var runContainers = map[string]bool{
	"hyperlink":  true,
	"ins":        true,
	"smartTag":   true,
	"sdt":        true,
	"sdtContent": true,
	"fldSimple":  true,
	"customXml":  true,
	"moveTo":     true,
}

// Text returns the visible text of the paragraph. Tabs and line breaks are
// rendered as '\t' and '\n'; deleted revisions and page breaks contribute
// nothing.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	p.eachRun(func(r *node) bool {
		for _, c := range r.children {
			switch {
			case c.is(p.w, "t"):
				sb.WriteString(c.textContent())
			case c.is(p.w, "tab"):
				sb.WriteByte('\t')
			case c.is(p.w, "cr"):
				sb.WriteByte('\n')
			case c.is(p.w, "br"):
				if t, _ := c.attrValue(p.w, "type"); t == "" || t == "textWrapping" {
					sb.WriteByte('\n')
				}
			}
		}
		return true
	})
	return sb.String()
}

// eachRun visits the paragraph's runs in order until fn returns false.
func (p *Paragraph) eachRun(fn func(*node) bool) {
	var walk func(*node) bool
	walk = func(n *node) bool {
		for _, c := range n.children {
			if c.kind != elementNode || c.name.Space != p.w {
				continue
			}
			if c.name.Local == "r" {
				if !fn(c) {
					return false
				}
				continue
			}
			if runContainers[c.name.Local] {
				if !walk(c) {
					return false
				}
			}
		}
		return true
	}
	walk(p.n)
}

// SetText replaces the paragraph content with a single run carrying s.
// Paragraph properties and the first run's character formatting are kept.
func (p *Paragraph) SetText(s string) {
	var rPr *node
	p.eachRun(func(r *node) bool {
		if props := r.child(p.w, "rPr"); props != nil {
			rPr = props.clone()
			return false
		}
		return true
	})

	p.Clear()
	if s == "" {
		return
	}

	run := newElement(p.w, "r")
	if rPr != nil {
		run.appendChild(rPr)
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var seg strings.Builder
	flush := func() {
		if seg.Len() == 0 {
			return
		}
		text := seg.String()
		t := newElement(p.w, "t")
		if strings.TrimSpace(text) != text || strings.Contains(text, "  ") {
			t.attrs = append(t.attrs, attr("xml", "space", "preserve"))
		}
		t.appendChild(newText(text))
		run.appendChild(t)
		seg.Reset()
	}
	for _, r := range s {
		switch r {
		case '\t':
			flush()
			run.appendChild(newElement(p.w, "tab"))
		case '\n':
			flush()
			run.appendChild(newElement(p.w, "br"))
		default:
			if isXMLChar(r) {
				seg.WriteRune(r)
			}
		}
	}
	flush()

	p.n.appendChild(run)
}

// isXMLChar reports whether r may appear in XML 1.0 character data.
// Other control characters make the part unreadable and are dropped.
func isXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r < 0x20:
		return false
	case r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
		return false
	}
	return r <= 0x10FFFF
}

// Clear removes all paragraph content except its properties. The paragraph
// element itself stays in place.
func (p *Paragraph) Clear() {
	p.n.retainChildren(func(c *node) bool {
		return c.is(p.w, "pPr")
	})
}

// Rows returns the table rows in order.
func (t *Table) Rows() []*Row {
	var out []*Row
	for _, n := range t.n.childElements(t.w, "tr") {
		out = append(out, &Row{n: n, w: t.w})
	}
	return out
}

// Shape returns the number of cells in each row.
func (t *Table) Shape() []int {
	rows := t.Rows()
	shape := make([]int, len(rows))
	for i, r := range rows {
		shape[i] = len(r.Cells())
	}
	return shape
}

// Cells returns the row's cells in column order.
func (r *Row) Cells() []*Cell {
	var out []*Cell
	for _, n := range r.n.childElements(r.w, "tc") {
		out = append(out, &Cell{n: n, w: r.w})
	}
	return out
}

// Paragraphs returns the cell's sub-paragraphs. The first one carries the
// cell's text after a SetText on the cell's content.
func (c *Cell) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, n := range c.n.childElements(c.w, "p") {
		out = append(out, &Paragraph{n: n, w: c.w})
	}
	return out
}

// Text joins the sub-paragraph texts with '\n'. Trailing empty paragraphs do
// not contribute, so a cell whose extra paragraphs were cleared reads the
// same as one that never had them.
func (c *Cell) Text() string {
	paras := c.Paragraphs()
	texts := make([]string, len(paras))
	last := -1
	for i, p := range paras {
		texts[i] = p.Text()
		if texts[i] != "" {
			last = i
		}
	}
	return strings.Join(texts[:last+1], "\n")
}

// AddParagraph appends an empty paragraph to the cell.
func (c *Cell) AddParagraph() *Paragraph {
	n := newElement(c.w, "p")
	c.n.appendChild(n)
	return &Paragraph{n: n, w: c.w}
}
