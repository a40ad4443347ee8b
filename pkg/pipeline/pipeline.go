package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/docx"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

// UnitTranslator is the fail-open translation contract the pipeline relies
// on; *translate.Adapter implements it.
type UnitTranslator interface {
	Translate(ctx context.Context, text string) translate.Outcome
	Name() string
}

// Options configures a Pipeline.
type Options struct {
	// ParagraphConcurrency and TableConcurrency cap in-flight provider calls
	// per phase. Values below 1 mean DefaultConcurrency.
	ParagraphConcurrency int
	TableConcurrency     int
}

// Stats summarizes a run.
type Stats struct {
	Paragraphs  int
	Tables      int
	Cells       int
	Translated  int
	Passthrough int
	Skipped     int
	Duration    time.Duration
}

// Pipeline runs the paragraph phase and then the tables phase over a
// document.
type Pipeline struct {
	paragraphs  UnitTranslator
	tables      UnitTranslator
	opts        Options
	reassembler Reassembler
	logger      *logrus.Logger
}

// New creates a pipeline. tables may be nil, in which case table cells use
// the paragraph translator.
func New(paragraphs, tables UnitTranslator, opts Options, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	if tables == nil {
		tables = paragraphs
	}
	return &Pipeline{
		paragraphs: paragraphs,
		tables:     tables,
		opts:       opts,
		logger:     logger,
	}
}

// Run translates doc in place. Unit failures never fail the run; only
// cancellation or a failed write-back does. reporter may be nil.
func (p *Pipeline) Run(ctx context.Context, doc *docx.Document, reporter Reporter) (Stats, error) {
	start := time.Now()
	paragraphs, tables := Extract(doc)

	stats := Stats{Paragraphs: len(paragraphs), Tables: len(tables)}
	sizes := make([]int, len(tables))
	var cells []Unit
	for i, t := range tables {
		sizes[i] = len(t)
		cells = append(cells, t...)
	}
	stats.Cells = len(cells)

	p.logger.WithFields(logrus.Fields{
		"paragraphs": stats.Paragraphs,
		"tables":     stats.Tables,
		"cells":      stats.Cells,
	}).Info("Extracted translation units")

	tracker := NewTracker(PhaseParagraphs, len(paragraphs), reporter)
	if err := p.runPhase(ctx, PhaseParagraphs, paragraphs, p.paragraphs, p.opts.ParagraphConcurrency, tracker, &stats); err != nil {
		return stats, err
	}

	tracker = NewTableTracker(sizes, reporter)
	if err := p.runPhase(ctx, PhaseTables, cells, p.tables, p.opts.TableConcurrency, tracker, &stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	p.logger.WithFields(logrus.Fields{
		"translated":  stats.Translated,
		"passthrough": stats.Passthrough,
		"skipped":     stats.Skipped,
		"duration_ms": stats.Duration.Milliseconds(),
	}).Info("Document translation finished")
	return stats, nil
}

func (p *Pipeline) runPhase(ctx context.Context, phase Phase, units []Unit, tr UnitTranslator, limit int, tracker *Tracker, stats *Stats) error {
	start := time.Now()
	d := NewDispatcher(limit, p.logger)

	p.logger.WithFields(logrus.Fields{
		"phase":       phase,
		"units":       len(units),
		"provider":    tr.Name(),
		"concurrency": d.Limit,
	}).Info("Starting phase")
	tracker.Start()

	translateUnit := func(ctx context.Context, u Unit) translate.Outcome {
		return tr.Translate(ctx, u.Source)
	}

	// Only the dispatching goroutine calls apply, so stats need no lock.
	apply := func(u Unit, o translate.Outcome) error {
		switch {
		case o.Skipped:
			stats.Skipped++
			recordUnit(phase, "skipped")
			return nil
		case o.Passthrough:
			stats.Passthrough++
			recordUnit(phase, "passthrough")
		default:
			stats.Translated++
			recordUnit(phase, "translated")
		}
		return p.reassembler.Apply(u, o.Text)
	}

	if err := d.Dispatch(ctx, units, translateUnit, apply, tracker); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"phase": phase,
		}).Error("Phase aborted")
		return fmt.Errorf("%s phase: %w", phase, err)
	}

	phaseDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
	p.logger.WithFields(logrus.Fields{
		"phase":       phase,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Phase completed")
	return nil
}
