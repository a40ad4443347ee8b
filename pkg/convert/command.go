package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/domain"
)

// commandConverter runs an external program that writes the .docx.
type commandConverter struct {
	name    string
	timeout time.Duration
	logger  *logrus.Logger
	// args returns the program and arguments for one conversion.
	args func(pdfPath, outputPath string) (string, []string)
	// finish moves the program's result to outputPath if it does not write
	// there directly.
	finish func(pdfPath, outputPath string) error
}

func newPDF2Docx(cfg Config, logger *logrus.Logger) *commandConverter {
	bin := cfg.Binary
	if bin == "" {
		bin = "pdf2docx"
	}
	return &commandConverter{
		name:    string(EnginePDF2Docx),
		timeout: cfg.Timeout,
		logger:  logger,
		args: func(in, out string) (string, []string) {
			return bin, []string{"convert", in, out}
		},
	}
}

func newLibreOffice(cfg Config, logger *logrus.Logger) *commandConverter {
	bin := cfg.Binary
	if bin == "" {
		bin = "soffice"
	}
	c := &commandConverter{
		name:    string(EngineLibreOffice),
		timeout: cfg.Timeout,
		logger:  logger,
	}
	c.args = func(in, out string) (string, []string) {
		return bin, []string{
			"--headless",
			"--infilter=writer_pdf_import",
			"--convert-to", "docx",
			"--outdir", sofficeDir(out),
			in,
		}
	}
	c.finish = func(in, out string) error {
		outDir := sofficeDir(out)
		defer os.RemoveAll(outDir)
		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		produced := filepath.Join(outDir, stem+".docx")
		if _, err := os.Stat(produced); err != nil {
			return domain.ConversionError("libreoffice produced no output", err)
		}
		if err := os.Rename(produced, out); err != nil {
			return domain.IOError("move converted document", err)
		}
		return nil
	}
	return c
}

// sofficeDir is the scratch directory soffice writes into; it names its
// output after the input file.
func sofficeDir(outputPath string) string {
	return outputPath + ".soffice"
}

func newTemplateCommand(cfg Config, logger *logrus.Logger) *commandConverter {
	fields := strings.Fields(cfg.Command)
	return &commandConverter{
		name:    string(EngineCommand),
		timeout: cfg.Timeout,
		logger:  logger,
		args: func(in, out string) (string, []string) {
			r := strings.NewReplacer("{input}", in, "{output}", out)
			args := make([]string, len(fields)-1)
			for i, f := range fields[1:] {
				args[i] = r.Replace(f)
			}
			return r.Replace(fields[0]), args
		},
	}
}

func (c *commandConverter) Name() string {
	return c.name
}

// Convert runs the program with a timeout. A non-zero exit, a timeout or a
// missing output file is a ConversionError.
func (c *commandConverter) Convert(ctx context.Context, pdfPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bin, args := c.args(pdfPath, outputPath)
	logger := c.logger.WithFields(logrus.Fields{
		"converter": c.name,
		"binary":    bin,
		"input":     pdfPath,
		"output":    outputPath,
	})
	logger.Info("Converting PDF to document")

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("timed out after %s", c.timeout)
		case ctx.Err() != nil:
			return ctx.Err()
		}
		logger.WithError(err).WithField("output", tail(output.String(), 1000)).Error("Conversion failed")
		return domain.ConversionError(fmt.Sprintf("%s failed: %s", c.name, tail(output.String(), 300)), err)
	}

	if c.finish != nil {
		if err := c.finish(pdfPath, outputPath); err != nil {
			return err
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return domain.ConversionError(fmt.Sprintf("%s produced no output file", c.name), err)
	}
	if info.Size() == 0 {
		return domain.ConversionError(fmt.Sprintf("%s produced an empty output file", c.name), nil)
	}

	logger.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"size":        info.Size(),
	}).Info("Conversion completed")
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
