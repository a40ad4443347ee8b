package pipeline

import (
	"fmt"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

// Reassembler writes translated text back to a unit's target.
type Reassembler struct{}

// Apply replaces a paragraph's text wholesale. For a cell the text goes into
// the first sub-paragraph and every other sub-paragraph is emptied but kept,
// so the cell's layout anchors survive. A cell without any paragraph gets
// one.
func (Reassembler) Apply(u Unit, text string) error {
	switch u.Kind {
	case KindParagraph:
		if u.paragraph == nil {
			return domain.ExtractionError(fmt.Sprintf("unit %s has no paragraph target", u.ID()), nil)
		}
		u.paragraph.SetText(text)
		return nil
	case KindCell:
		if u.cell == nil {
			return domain.ExtractionError(fmt.Sprintf("unit %s has no cell target", u.ID()), nil)
		}
		paras := u.cell.Paragraphs()
		if len(paras) == 0 {
			u.cell.AddParagraph().SetText(text)
			return nil
		}
		paras[0].SetText(text)
		for _, p := range paras[1:] {
			p.Clear()
		}
		return nil
	default:
		return domain.ExtractionError(fmt.Sprintf("unit %s has unknown kind %d", u.ID(), u.Kind), nil)
	}
}
