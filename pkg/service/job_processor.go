package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/pipeline"
)

// DefaultJobTimeout bounds one job from conversion to save.
const DefaultJobTimeout = 2 * time.Hour

// Overall percentage bands of each stage.
const (
	percentConvert    = 0
	percentParagraphs = 10
	percentTables     = 60
	percentSave       = 95
)

// JobProcessor processes translation jobs asynchronously.
type JobProcessor struct {
	ctx     context.Context
	runner  *Runner
	timeout time.Duration
	logger  *logrus.Logger
}

// NewJobProcessor creates a job processor. Jobs are canceled when ctx is.
func NewJobProcessor(ctx context.Context, runner *Runner, logger *logrus.Logger) *JobProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobProcessor{
		ctx:     ctx,
		runner:  runner,
		timeout: DefaultJobTimeout,
		logger:  logger,
	}
}

// ProcessJob runs a job to completion and records the outcome on it.
func (p *JobProcessor) ProcessJob(job *TranslationJob) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	log := p.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"filename": job.Filename,
	})
	log.Info("Starting translation job processing")

	job.UpdateStatus(JobStatusProcessing, "Starting translation...")
	jobsInProgress.Inc()
	defer jobsInProgress.Dec()
	start := time.Now()

	target := firstNonEmpty(job.TargetLang, p.runner.cfg.TargetLang)
	req := Request{
		PDFPath:    job.InputPath(),
		OutputPath: filepath.Join(job.dir, OutputName(job.Filename, target)),
		SourceLang: job.SourceLang,
		TargetLang: target,
	}
	hooks := Hooks{
		Stage: func(s Stage) {
			switch s {
			case StageConvert:
				job.UpdateProgress(string(s), 0, percentConvert, "Converting PDF to Word...")
			case StageSave:
				job.UpdateProgress(string(s), 0, percentSave, "Saving document...")
			}
		},
		Preview:  job.SetPreview,
		Progress: pipeline.ReporterFunc(func(e pipeline.Event) { reportPhase(job, e) }),
	}

	res, err := p.runner.Run(ctx, req, hooks)
	jobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.WithError(err).Error("Translation job failed")
		job.SetError(err)
		recordJob(JobStatusFailed)
		return
	}

	job.SetResult(res)
	recordJob(JobStatusCompleted)
	log.WithFields(logrus.Fields{
		"translated":  res.Stats.Translated,
		"passthrough": res.Stats.Passthrough,
		"duration_ms": res.Duration.Milliseconds(),
	}).Info("Translation job completed successfully")
}

// reportPhase maps a pipeline event into the job's overall percentage.
func reportPhase(job *TranslationJob, e pipeline.Event) {
	var percent int32
	var message string
	switch e.Phase {
	case pipeline.PhaseParagraphs:
		percent = percentParagraphs + int32(e.Ratio*float64(percentTables-percentParagraphs))
		message = fmt.Sprintf("Translating paragraphs %d/%d", e.Done, e.Total)
	default:
		percent = percentTables + int32(e.Ratio*float64(percentSave-percentTables))
		message = fmt.Sprintf("Translating tables %d/%d (cells %d/%d)", e.TablesDone, e.TablesTotal, e.Done, e.Total)
	}
	job.UpdateProgress(string(e.Phase), e.Ratio, percent, message)
}
