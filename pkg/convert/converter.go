// Package convert turns a PDF into an editable .docx using an external
// converter or the built-in text-only engine.
package convert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Converter converts the PDF at pdfPath into a .docx at outputPath.
type Converter interface {
	Convert(ctx context.Context, pdfPath, outputPath string) error
	Name() string
}

// Engine selects a converter implementation.
type Engine string

const (
	// EnginePDF2Docx runs the pdf2docx command line tool.
	EnginePDF2Docx Engine = "pdf2docx"
	// EngineLibreOffice runs soffice in headless mode with the PDF import filter.
	EngineLibreOffice Engine = "libreoffice"
	// EngineCommand runs an operator-supplied command template.
	EngineCommand Engine = "command"
	// EngineBuiltin extracts page text with MuPDF and builds a plain document.
	EngineBuiltin Engine = "builtin"
)

// DefaultTimeout bounds one conversion.
const DefaultTimeout = 10 * time.Minute

// Config holds configuration for creating a Converter.
type Config struct {
	Engine Engine `yaml:"engine"`
	// Binary overrides the executable of the pdf2docx and libreoffice engines.
	Binary string `yaml:"binary"`
	// Command is the template for EngineCommand. {input} and {output} are
	// replaced by the file paths.
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// ParseEngine parses a converter engine name.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(strings.ToLower(strings.TrimSpace(s))); e {
	case EnginePDF2Docx, EngineLibreOffice, EngineCommand, EngineBuiltin:
		return e, nil
	case "soffice":
		return EngineLibreOffice, nil
	case "fitz", "mupdf":
		return EngineBuiltin, nil
	default:
		return "", fmt.Errorf("unknown converter engine: %s (supported: pdf2docx, libreoffice, command, builtin)", s)
	}
}

// New creates the converter selected by cfg.
func New(cfg Config, logger *logrus.Logger) (Converter, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Engine {
	case EnginePDF2Docx, "":
		return newPDF2Docx(cfg, logger), nil
	case EngineLibreOffice:
		return newLibreOffice(cfg, logger), nil
	case EngineCommand:
		if !strings.Contains(cfg.Command, "{input}") || !strings.Contains(cfg.Command, "{output}") {
			return nil, fmt.Errorf("command template must contain {input} and {output}: %q", cfg.Command)
		}
		return newTemplateCommand(cfg, logger), nil
	case EngineBuiltin:
		return NewFitzConverter(logger), nil
	default:
		return nil, fmt.Errorf("unknown converter engine: %s", cfg.Engine)
	}
}
