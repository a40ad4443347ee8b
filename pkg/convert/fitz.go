package convert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/docx"
	"github.com/dasmlab/pdftrans/pkg/domain"
)

// FitzConverter builds a plain .docx from the PDF's text layer using MuPDF.
// It keeps paragraphs and page breaks but not tables or layout; it exists
// for hosts without pdf2docx or LibreOffice.
type FitzConverter struct {
	logger *logrus.Logger
}

// NewFitzConverter creates a built-in converter.
func NewFitzConverter(logger *logrus.Logger) *FitzConverter {
	if logger == nil {
		logger = logrus.New()
	}
	return &FitzConverter{logger: logger}
}

func (c *FitzConverter) Name() string {
	return string(EngineBuiltin)
}

// Convert extracts each page's text and writes it as paragraphs, one page
// break between pages.
func (c *FitzConverter) Convert(ctx context.Context, pdfPath, outputPath string) error {
	start := time.Now()
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return domain.ConversionError("Failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return domain.ConversionError("PDF has no pages", nil)
	}

	out := docx.New()
	paragraphs := 0
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			return domain.ConversionError(fmt.Sprintf("Failed to extract text of page %d", pageNum+1), err)
		}
		if pageNum > 0 {
			out.AddPageBreak()
		}
		for _, p := range pageParagraphs(text) {
			out.AddParagraph(p)
			paragraphs++
		}
	}

	if err := out.Save(outputPath); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"converter":   c.Name(),
		"pages":       pageCount,
		"paragraphs":  paragraphs,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Conversion completed")
	return nil
}

// pageParagraphs splits page text on blank lines and joins the wrapped lines
// of each block with spaces.
func pageParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	var block []string
	flush := func() {
		if len(block) > 0 {
			out = append(out, strings.Join(block, " "))
			block = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	return out
}

// PageCount returns the number of pages of a PDF.
func PageCount(pdfPath string) (int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return 0, domain.ValidationError("cannot open PDF", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
