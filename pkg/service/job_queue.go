package service

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/convert"
	"github.com/dasmlab/pdftrans/pkg/domain"
	"github.com/dasmlab/pdftrans/pkg/pipeline"
)

// TranslationJobStatus represents the status of a translation job.
type TranslationJobStatus string

const (
	JobStatusQueued     TranslationJobStatus = "queued"
	JobStatusProcessing TranslationJobStatus = "processing"
	JobStatusCompleted  TranslationJobStatus = "completed"
	JobStatusFailed     TranslationJobStatus = "failed"
)

// Terminal reports whether no further updates will happen.
func (s TranslationJobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// inputName is the file name of the stored upload inside a job directory.
const inputName = "input.pdf"

// TranslationJob represents one uploaded PDF and its translation. Read its
// state through Snapshot; SourceLang and TargetLang are empty for "configured
// default" until the job completes.
type TranslationJob struct {
	ID         string
	Filename   string
	SourceLang string
	TargetLang string
	CreatedAt  time.Time

	dir string

	mu          sync.RWMutex
	status      TranslationJobStatus
	startedAt   *time.Time
	completedAt *time.Time
	err         string
	stage       string
	phaseRatio  float64
	percent     int32
	message     string
	preview     []string
	stats       pipeline.Stats
	outputPath  string
}

// JobStatus is a point-in-time copy of a job.
type JobStatus struct {
	ID              string               `json:"job_id"`
	Filename        string               `json:"filename"`
	Status          TranslationJobStatus `json:"status"`
	Stage           string               `json:"stage,omitempty"`
	PhaseRatio      float64              `json:"phase_ratio"`
	ProgressPercent int32                `json:"progress_percent"`
	ProgressMessage string               `json:"progress_message"`
	SourceLang      string               `json:"source_lang,omitempty"`
	TargetLang      string               `json:"target_lang,omitempty"`
	Error           string               `json:"error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	Stats           *JobStats            `json:"stats,omitempty"`

	OutputPath string   `json:"-"`
	Preview    []string `json:"-"`
}

// JobStats is the JSON form of pipeline.Stats.
type JobStats struct {
	Paragraphs  int   `json:"paragraphs"`
	Tables      int   `json:"tables"`
	Cells       int   `json:"cells"`
	Translated  int   `json:"translated"`
	Passthrough int   `json:"passthrough"`
	Skipped     int   `json:"skipped"`
	DurationMS  int64 `json:"duration_ms"`
}

// InputPath is where the uploaded PDF is stored.
func (j *TranslationJob) InputPath() string {
	return filepath.Join(j.dir, inputName)
}

// UpdateStatus updates the status of a job.
func (j *TranslationJob) UpdateStatus(status TranslationJobStatus, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = status
	j.message = message

	now := time.Now()
	switch status {
	case JobStatusProcessing:
		if j.startedAt == nil {
			j.startedAt = &now
		}
	case JobStatusCompleted, JobStatusFailed:
		if j.completedAt == nil {
			j.completedAt = &now
		}
	}
}

// UpdateProgress records the current stage and overall percentage. The
// percentage never goes backwards.
func (j *TranslationJob) UpdateProgress(stage string, ratio float64, percent int32, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stage = stage
	j.phaseRatio = ratio
	j.percent = max(j.percent, percent)
	j.message = message
}

// SetPreview stores the source text preview.
func (j *TranslationJob) SetPreview(preview []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.preview = append([]string(nil), preview...)
}

// SetError sets the error message for a failed job.
func (j *TranslationJob) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err.Error()
	j.status = JobStatusFailed
	j.message = "Translation failed"
	now := time.Now()
	j.completedAt = &now
}

// SetResult marks the job completed and records the effective languages.
func (j *TranslationJob) SetResult(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.SourceLang = res.SourceLang
	j.TargetLang = res.TargetLang
	j.outputPath = res.OutputPath
	j.stats = res.Stats
	if j.preview == nil {
		j.preview = res.Preview
	}
	j.status = JobStatusCompleted
	j.stage = string(StageSave)
	j.phaseRatio = 1
	j.percent = 100
	j.message = "Translation completed"
	now := time.Now()
	j.completedAt = &now
}

// Snapshot returns a copy of the job state (thread-safe).
func (j *TranslationJob) Snapshot() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()

	s := JobStatus{
		ID:              j.ID,
		Filename:        j.Filename,
		Status:          j.status,
		Stage:           j.stage,
		PhaseRatio:      j.phaseRatio,
		ProgressPercent: j.percent,
		ProgressMessage: j.message,
		SourceLang:      j.SourceLang,
		TargetLang:      j.TargetLang,
		Error:           j.err,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.startedAt,
		CompletedAt:     j.completedAt,
		OutputPath:      j.outputPath,
		Preview:         append([]string(nil), j.preview...),
	}
	if j.status == JobStatusCompleted {
		s.Stats = &JobStats{
			Paragraphs:  j.stats.Paragraphs,
			Tables:      j.stats.Tables,
			Cells:       j.stats.Cells,
			Translated:  j.stats.Translated,
			Passthrough: j.stats.Passthrough,
			Skipped:     j.stats.Skipped,
			DurationMS:  j.stats.Duration.Milliseconds(),
		}
	}
	return s
}

// GetStatus returns the job status, message and percentage (thread-safe).
func (j *TranslationJob) GetStatus() (TranslationJobStatus, string, int32) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.status, j.message, j.percent
}

// JobQueue manages translation jobs in memory. Nothing survives a restart.
type JobQueue struct {
	jobs      map[string]*TranslationJob
	jobsMu    sync.RWMutex
	baseDir   string
	validator *convert.Validator
	logger    *logrus.Logger
	processor *JobProcessor
}

// NewJobQueue creates a new job queue storing uploads under baseDir, or the
// system temp directory when baseDir is empty.
func NewJobQueue(baseDir string, logger *logrus.Logger) *JobQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &JobQueue{
		jobs:      make(map[string]*TranslationJob),
		baseDir:   baseDir,
		validator: convert.NewValidator(logger),
		logger:    logger,
	}
}

// SetProcessor sets the job processor for this queue.
func (q *JobQueue) SetProcessor(processor *JobProcessor) {
	q.processor = processor
}

// CreateJob stores an uploaded PDF and starts translating it. Uploads that
// are not PDFs are rejected with a ValidationError before anything is
// written. Empty languages mean the configured defaults.
func (q *JobQueue) CreateJob(filename, sourceLang, targetLang string, upload io.Reader) (string, error) {
	if err := q.validator.ValidateFilename(filename); err != nil {
		return "", err
	}
	br := bufio.NewReader(upload)
	head, _ := br.Peek(5)
	if err := q.validator.CheckMagic(bytes.NewReader(head)); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(q.baseDir, "pdftrans-job-*")
	if err != nil {
		return "", domain.IOError("creating job directory", err)
	}
	job := &TranslationJob{
		ID:         uuid.New().String(),
		Filename:   filepath.Base(filename),
		SourceLang: sourceLang,
		TargetLang: targetLang,
		CreatedAt:  time.Now(),
		dir:        dir,
		status:     JobStatusQueued,
		message:    "Queued",
	}
	if err := writeUpload(job.InputPath(), br); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	q.jobsMu.Lock()
	q.jobs[job.ID] = job
	q.jobsMu.Unlock()
	recordJob(JobStatusQueued)

	q.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"filename": job.Filename,
	}).Info("Created translation job")

	if q.processor != nil {
		go q.processor.ProcessJob(job)
	}

	return job.ID, nil
}

func writeUpload(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return domain.IOError("storing upload", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return domain.IOError("storing upload", err)
	}
	if err := f.Close(); err != nil {
		return domain.IOError("storing upload", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (q *JobQueue) GetJob(jobID string) (*TranslationJob, error) {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()

	job, exists := q.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	return job, nil
}

// Remove deletes a job and its files.
func (q *JobQueue) Remove(jobID string) {
	q.jobsMu.Lock()
	job, ok := q.jobs[jobID]
	delete(q.jobs, jobID)
	q.jobsMu.Unlock()

	if ok {
		q.removeFiles(job)
	}
}

// Len returns the number of jobs held.
func (q *JobQueue) Len() int {
	q.jobsMu.RLock()
	defer q.jobsMu.RUnlock()
	return len(q.jobs)
}

func (q *JobQueue) removeFiles(job *TranslationJob) {
	if err := os.RemoveAll(job.dir); err != nil {
		q.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to remove job files")
	}
}

// CleanupOldJobs removes finished jobs older than maxAge together with
// their files.
func (q *JobQueue) CleanupOldJobs(maxAge time.Duration) int {
	q.jobsMu.Lock()
	now := time.Now()
	var expired []*TranslationJob
	for id, job := range q.jobs {
		job.mu.RLock()
		done := job.status.Terminal() && job.completedAt != nil && now.Sub(*job.completedAt) > maxAge
		job.mu.RUnlock()
		if done {
			delete(q.jobs, id)
			expired = append(expired, job)
		}
	}
	remaining := len(q.jobs)
	q.jobsMu.Unlock()

	for _, job := range expired {
		q.removeFiles(job)
	}
	if len(expired) > 0 {
		q.logger.WithFields(logrus.Fields{
			"removed":   len(expired),
			"remaining": remaining,
		}).Info("Cleaned up old translation jobs")
	}
	return len(expired)
}
