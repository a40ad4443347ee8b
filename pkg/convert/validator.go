package convert

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

// maxPDFSize is the size above which a warning is logged.
const maxPDFSize = 100 * 1024 * 1024

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for PDF files
type Validator struct {
	logger *logrus.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{logger: logger}
}

// ValidateFilename accepts only names ending in .pdf, in any case.
func (v *Validator) ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ValidationError("file name cannot be empty", nil)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" {
		if ext == "" {
			return domain.ValidationError("file is not a PDF (no extension)", nil)
		}
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}
	return nil
}

// CheckMagic reads the first bytes of r and verifies the PDF signature.
func (v *Validator) CheckMagic(r io.Reader) error {
	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return domain.ValidationError("file is too short to be a PDF", err)
	}
	if !bytes.Equal(head, pdfMagic) {
		return domain.ValidationError("file does not start with a PDF signature", nil)
	}
	return nil
}

// ValidatePDFPath validates that a file path is valid and points to a readable PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}
	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	if err := v.ValidateFilename(path); err != nil {
		return err
	}

	if info.Size() > maxPDFSize {
		v.logger.WithFields(logrus.Fields{
			"path":    path,
			"size_mb": info.Size() / (1024 * 1024),
		}).Warn("PDF file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	defer file.Close()

	return v.CheckMagic(file)
}
