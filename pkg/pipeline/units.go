// Package pipeline translates a document in place: it extracts translatable
// units, fans the provider calls out over a bounded worker pool and writes
// each result back to the paragraph or cell it came from.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/dasmlab/pdftrans/pkg/docx"
)

// Phase is a sequential stage of a run with its own progress.
type Phase string

const (
	PhaseParagraphs Phase = "paragraphs"
	PhaseTables     Phase = "tables"
)

// Kind tells which structure a unit writes back to.
type Kind int

const (
	KindParagraph Kind = iota
	KindCell
)

func (k Kind) String() string {
	if k == KindCell {
		return "cell"
	}
	return "paragraph"
}

// Unit is one translatable piece of text bound to the document node its
// translation must be written to. Source is captured at extraction so
// workers never read the document while it is being written.
type Unit struct {
	Kind Kind
	// Index is the paragraph index for paragraph units and the row-major
	// cell index within its table for cell units.
	Index int
	// Table, Row and Col locate cell units; they are -1 for paragraphs.
	Table, Row, Col int
	Source          string

	paragraph *docx.Paragraph
	cell      *docx.Cell
}

// ID renders a short, unique label for logs.
func (u Unit) ID() string {
	if u.Kind == KindCell {
		return fmt.Sprintf("t%d.r%d.c%d", u.Table, u.Row, u.Col)
	}
	return fmt.Sprintf("p%d", u.Index)
}

// Extract walks the document read-only. Paragraph units are the body
// paragraphs with non-blank text, in order. Table units are every cell of
// each table in row-major order; blank cells are kept here and skipped at
// translation time.
func Extract(doc *docx.Document) (paragraphs []Unit, tables [][]Unit) {
	for i, p := range doc.Paragraphs() {
		text := p.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		paragraphs = append(paragraphs, Unit{
			Kind:      KindParagraph,
			Index:     i,
			Table:     -1,
			Row:       -1,
			Col:       -1,
			Source:    text,
			paragraph: p,
		})
	}

	for ti, t := range doc.Tables() {
		var cells []Unit
		for ri, row := range t.Rows() {
			for ci, c := range row.Cells() {
				cells = append(cells, Unit{
					Kind:   KindCell,
					Index:  len(cells),
					Table:  ti,
					Row:    ri,
					Col:    ci,
					Source: c.Text(),
					cell:   c,
				})
			}
		}
		tables = append(tables, cells)
	}
	return paragraphs, tables
}

// Preview returns the first n non-blank body paragraph texts.
func Preview(doc *docx.Document, n int) []string {
	var out []string
	for _, p := range doc.Paragraphs() {
		if len(out) >= n {
			break
		}
		if text := p.Text(); strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}
