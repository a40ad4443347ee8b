package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/config"
	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/docx"
	"github.com/dasmlab/pdftrans/pkg/domain"
	"github.com/dasmlab/pdftrans/pkg/pipeline"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

// Stage is a coarse step of a run.
type Stage string

const (
	StageConvert   Stage = "converting"
	StageTranslate Stage = "translating"
	StageSave      Stage = "saving"
)

// Request describes one PDF to translate.
type Request struct {
	PDFPath string
	// OutputPath defaults to OutputName next to the input, or in the
	// configured output directory.
	OutputPath string
	// SourceLang and TargetLang override the configured languages.
	SourceLang string
	TargetLang string
}

// Result describes a finished run.
type Result struct {
	OutputPath string
	SourceLang string
	TargetLang string
	Pages      int
	Preview    []string
	Stats      pipeline.Stats
	Duration   time.Duration
}

// Hooks observe a run. All fields are optional.
type Hooks struct {
	Stage    func(Stage)
	Preview  func([]string)
	Progress pipeline.Reporter
}

func (h Hooks) stage(s Stage) {
	if h.Stage != nil {
		h.Stage(s)
	}
}

// Runner translates one PDF at a time: convert, extract, translate, save.
// It is safe for concurrent use; each run gets its own work directory.
type Runner struct {
	cfg        *config.Config
	converter  convert.Converter
	validator  *convert.Validator
	paragraphs translate.Translator
	tables     translate.Translator
	logger     *logrus.Logger
}

// NewRunner builds the converter and both providers from cfg.
func NewRunner(cfg *config.Config, logger *logrus.Logger) (*Runner, error) {
	if logger == nil {
		logger = logrus.New()
	}
	conv, err := convert.New(cfg.Converter, logger)
	if err != nil {
		return nil, err
	}
	paragraphs, err := translate.NewTranslator(cfg.ParagraphProvider(), logger)
	if err != nil {
		return nil, fmt.Errorf("paragraph provider: %w", err)
	}
	tables := paragraphs
	if tp := cfg.TableProvider(); tp != cfg.ParagraphProvider() {
		if tables, err = translate.NewTranslator(tp, logger); err != nil {
			return nil, fmt.Errorf("table provider: %w", err)
		}
	}
	return NewRunnerWith(cfg, conv, paragraphs, tables, logger), nil
}

// NewRunnerWith creates a runner from ready-made parts. tables may be nil.
func NewRunnerWith(cfg *config.Config, conv convert.Converter, paragraphs, tables translate.Translator, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	if tables == nil {
		tables = paragraphs
	}
	return &Runner{
		cfg:        cfg,
		converter:  conv,
		validator:  convert.NewValidator(logger),
		paragraphs: paragraphs,
		tables:     tables,
		logger:     logger,
	}
}

// CheckHealth probes both providers.
func (r *Runner) CheckHealth(ctx context.Context) error {
	if err := r.paragraphs.CheckHealth(ctx); err != nil {
		return fmt.Errorf("paragraph provider %s: %w", r.paragraphs.Name(), err)
	}
	if r.tables != r.paragraphs {
		if err := r.tables.CheckHealth(ctx); err != nil {
			return fmt.Errorf("table provider %s: %w", r.tables.Name(), err)
		}
	}
	return nil
}

// Run translates req.PDFPath into a new document. Provider failures never
// fail the run; conversion, extraction, write errors and cancellation do.
func (r *Runner) Run(ctx context.Context, req Request, hooks Hooks) (*Result, error) {
	start := time.Now()
	res := &Result{
		SourceLang: firstNonEmpty(req.SourceLang, r.cfg.SourceLang),
		TargetLang: firstNonEmpty(req.TargetLang, r.cfg.TargetLang),
	}
	mapper := translate.NewLanguageMapper()
	if !mapper.Valid(res.SourceLang) {
		return nil, domain.ValidationError(fmt.Sprintf("invalid source language %q", res.SourceLang), nil)
	}
	if !mapper.Valid(res.TargetLang) {
		return nil, domain.ValidationError(fmt.Sprintf("invalid target language %q", res.TargetLang), nil)
	}
	if err := r.validator.ValidatePDFPath(req.PDFPath); err != nil {
		return nil, err
	}

	log := r.logger.WithFields(logrus.Fields{
		"input":  req.PDFPath,
		"source": res.SourceLang,
		"target": res.TargetLang,
	})
	if pages, err := convert.PageCount(req.PDFPath); err != nil {
		log.WithError(err).Warn("Could not count PDF pages")
	} else {
		res.Pages = pages
	}
	log.WithField("pages", res.Pages).Info("Starting document translation")

	workDir, err := os.MkdirTemp(r.cfg.Server.WorkDir, "pdftrans-*")
	if err != nil {
		return nil, domain.IOError("creating work directory", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.WithError(err).Warn("Failed to remove work directory")
		}
	}()

	hooks.stage(StageConvert)
	converted := filepath.Join(workDir, stem(req.PDFPath)+".docx")
	convStart := time.Now()
	if err := r.converter.Convert(ctx, req.PDFPath, converted); err != nil {
		log.WithError(err).Error("Conversion failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"converter":   r.converter.Name(),
		"duration_ms": time.Since(convStart).Milliseconds(),
	}).Info("PDF converted")

	doc, err := docx.Open(converted)
	if err != nil {
		return nil, err
	}

	res.Preview = pipeline.Preview(doc, r.cfg.Output.Preview)
	if hooks.Preview != nil {
		hooks.Preview(res.Preview)
	}

	hooks.stage(StageTranslate)
	opts := translate.AdapterOptions{
		SourceLang:  res.SourceLang,
		TargetLang:  res.TargetLang,
		CallTimeout: r.cfg.CallTimeout,
	}
	paragraphs := translate.NewAdapter(r.paragraphs, opts, r.logger)
	tables := paragraphs
	if r.tables != r.paragraphs {
		tables = translate.NewAdapter(r.tables, opts, r.logger)
	}
	p := pipeline.New(paragraphs, tables, pipeline.Options{
		ParagraphConcurrency: r.cfg.Concurrency.Paragraphs,
		TableConcurrency:     r.cfg.Concurrency.Tables,
	}, r.logger)
	res.Stats, err = p.Run(ctx, doc, hooks.Progress)
	if err != nil {
		return nil, err
	}

	hooks.stage(StageSave)
	if name, size := r.outputFont(res.TargetLang); name != "" {
		if !doc.SetDefaultFont(name, size) {
			log.WithField("font", name).Warn("Document has no default style; font left unchanged")
		}
	}

	res.OutputPath = req.OutputPath
	if res.OutputPath == "" {
		dir := r.cfg.Output.Dir
		if dir == "" {
			dir = filepath.Dir(req.PDFPath)
		}
		res.OutputPath = filepath.Join(dir, OutputName(req.PDFPath, res.TargetLang))
	}
	if err := os.MkdirAll(filepath.Dir(res.OutputPath), 0o755); err != nil {
		return nil, domain.IOError("creating output directory", err)
	}
	if err := doc.Save(res.OutputPath); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	log.WithFields(logrus.Fields{
		"output":      res.OutputPath,
		"duration_ms": res.Duration.Milliseconds(),
	}).Info("Document translation completed")
	return res, nil
}

func (r *Runner) outputFont(target string) (string, float64) {
	cfg := *r.cfg
	cfg.TargetLang = target
	return cfg.OutputFont()
}

// OutputName returns "<stem>_translated_<target>.docx" for an input path.
func OutputName(pdfPath, target string) string {
	return fmt.Sprintf("%s_translated_%s.docx", stem(pdfPath), target)
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
