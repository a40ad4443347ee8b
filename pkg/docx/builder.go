package docx

import (
	"fmt"
	"strings"
)

const minimalContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/><Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/></Types>`

const minimalPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const minimalDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`

const minimalDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="` + WordNamespace + `"><w:body><w:sectPr><w:pgSz w:w="11906" w:h="16838"/><w:pgMar w:top="1440" w:right="1800" w:bottom="1440" w:left="1800" w:header="851" w:footer="992" w:gutter="0"/></w:sectPr></w:body></w:document>`

const minimalStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="` + WordNamespace + `"><w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style><w:style w:type="table" w:default="1" w:styleId="TableNormal"><w:name w:val="Normal Table"/><w:tblPr><w:tblInd w:w="0" w:type="dxa"/><w:tblCellMar><w:top w:w="0" w:type="dxa"/><w:left w:w="108" w:type="dxa"/><w:bottom w:w="0" w:type="dxa"/><w:right w:w="108" w:type="dxa"/></w:tblCellMar></w:tblPr></w:style></w:styles>`

// New returns an empty A4 document with a Normal paragraph style.
func New() *Document {
	d := &Document{
		entries: []entry{
			{name: contentTypesPart, data: []byte(minimalContentTypes)},
			{name: "_rels/.rels", data: []byte(minimalPackageRels)},
			{name: documentPart},
			{name: "word/_rels/document.xml.rels", data: []byte(minimalDocumentRels)},
			{name: stylesPart},
		},
	}
	// The templates are constants; a parse failure is a programming error.
	if err := d.loadDocument([]byte(minimalDocument)); err != nil {
		panic(fmt.Sprintf("docx: minimal document template: %v", err))
	}
	if err := d.loadStyles([]byte(minimalStyles)); err != nil {
		panic(fmt.Sprintf("docx: minimal styles template: %v", err))
	}
	return d
}

// appendBody inserts n at the end of the body, before the trailing section
// properties.
func (d *Document) appendBody(n *node) {
	d.body.insertBefore(n, d.w, "sectPr")
}

// AddParagraph appends a body paragraph carrying text.
func (d *Document) AddParagraph(text string) *Paragraph {
	n := newElement(d.w, "p")
	d.appendBody(n)
	p := &Paragraph{n: n, w: d.w}
	p.SetText(text)
	return p
}

// AddPageBreak appends a paragraph holding a single page break.
func (d *Document) AddPageBreak() {
	p := newElement(d.w, "p")
	r := newElement(d.w, "r")
	r.appendChild(newElement(d.w, "br", attr(d.w, "type", "page")))
	p.appendChild(r)
	d.appendBody(p)
}

// AddTable appends a bordered table with the given cell texts. Rows may have
// different lengths. A "\n" in a cell text starts a new sub-paragraph.
func (d *Document) AddTable(rows [][]string) *Table {
	w := d.w
	tbl := newElement(w, "tbl")

	tblPr := newElement(w, "tblPr")
	tblPr.appendChild(newElement(w, "tblW", attr(w, "w", "0"), attr(w, "type", "auto")))
	borders := newElement(w, "tblBorders")
	for _, side := range []string{"top", "left", "bottom", "right", "insideH", "insideV"} {
		borders.appendChild(newElement(w, side,
			attr(w, "val", "single"), attr(w, "sz", "4"), attr(w, "space", "0"), attr(w, "color", "auto")))
	}
	tblPr.appendChild(borders)
	tbl.appendChild(tblPr)

	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	grid := newElement(w, "tblGrid")
	for i := 0; i < cols; i++ {
		grid.appendChild(newElement(w, "gridCol"))
	}
	tbl.appendChild(grid)

	for _, r := range rows {
		tr := newElement(w, "tr")
		for _, text := range r {
			tc := newElement(w, "tc")
			for _, line := range strings.Split(text, "\n") {
				p := newElement(w, "p")
				tc.appendChild(p)
				(&Paragraph{n: p, w: w}).SetText(line)
			}
			tr.appendChild(tc)
		}
		tbl.appendChild(tr)
	}

	d.appendBody(tbl)
	return &Table{n: tbl, w: w}
}
