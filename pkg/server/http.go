// Package server exposes translation jobs over HTTP: upload, status, SSE
// progress, source preview and download of the translated document.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pdftrans/pkg/domain"
	"github.com/dasmlab/pdftrans/pkg/service"
	"github.com/dasmlab/pdftrans/pkg/translate"
)

const (
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	// DefaultPollInterval is how often SSE streams check for job changes.
	DefaultPollInterval = time.Second
	// DefaultMaxUploadBytes caps the request body of an upload.
	DefaultMaxUploadBytes = 100 << 20
)

// Options configures an HTTPServer.
type Options struct {
	Port           int
	MaxUploadBytes int64
	PollInterval   time.Duration
}

// HTTPServer provides HTTP endpoints for translation jobs.
type HTTPServer struct {
	jobQueue *service.JobQueue
	logger   *logrus.Logger
	opts     Options
	mapper   *translate.LanguageMapper
	srv      *http.Server
}

// NewHTTPServer creates a new HTTP server for jobs.
func NewHTTPServer(jobQueue *service.JobQueue, logger *logrus.Logger, opts Options) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &HTTPServer{
		jobQueue: jobQueue,
		logger:   logger,
		opts:     opts,
		mapper:   translate.NewLanguageMapper(),
	}
}

// Handler returns the router with all routes.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.handleJobStatus)
			r.Get("/events", s.handleJobEvents)
			r.Get("/preview", s.handlePreview)
			r.Get("/download", s.handleDownload)
		})
	})
	return r
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf(":%d", s.opts.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithFields(logrus.Fields{
		"port": s.opts.Port,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"request_id":  chimiddleware.GetReqID(r.Context()),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("HTTP request")
	})
}

// handleCreateJob accepts a multipart upload in the "file" field.
func (s *HTTPServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	sourceLang := strings.TrimSpace(r.FormValue("source_lang"))
	targetLang := strings.TrimSpace(r.FormValue("target_lang"))
	for _, lang := range []string{sourceLang, targetLang} {
		if lang != "" && !s.mapper.Valid(lang) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid language %q", lang))
			return
		}
	}

	jobID, err := s.jobQueue.CreateJob(header.Filename, sourceLang, targetLang, file)
	if err != nil {
		if domain.IsType(err, domain.ErrorTypeValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).Error("Failed to create job")
		s.writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+jobID)
	s.writeJSON(w, http.StatusCreated, map[string]string{"job_id": jobID})
}

func (s *HTTPServer) lookup(w http.ResponseWriter, r *http.Request) (*service.TranslationJob, bool) {
	job, err := s.jobQueue.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return job, true
}

// handleJobStatus returns the current status of a translation job as JSON.
func (s *HTTPServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobEvents streams "status" events until the job is finished or the
// client goes away.
func (s *HTTPServer) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	last := job.Snapshot()
	s.sendSSEEvent(w, "status", last)
	for !last.Status.Terminal() {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			cur := job.Snapshot()
			if cur.Status != last.Status || cur.ProgressPercent != last.ProgressPercent || cur.ProgressMessage != last.ProgressMessage {
				s.sendSSEEvent(w, "status", cur)
			}
			last = cur
		}
	}
}

// sendSSEEvent writes one event as "event: <type>\ndata: <json>\n\n".
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, status service.JobStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal SSE event")
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", data)

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap := job.Snapshot()
	paragraphs := snap.Preview
	if paragraphs == nil {
		paragraphs = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     snap.ID,
		"status":     snap.Status,
		"paragraphs": paragraphs,
	})
}

// handleDownload sends the translated document and then discards the job.
func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap := job.Snapshot()
	if snap.Status != service.JobStatusCompleted {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", snap.Status))
		return
	}

	f, err := os.Open(snap.OutputPath)
	if err != nil {
		s.logger.WithError(err).WithField("job_id", snap.ID).Error("Translated document missing")
		s.writeError(w, http.StatusGone, "translated document is no longer available")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadName(snap.Filename, snap.TargetLang)))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", fmt.Sprint(info.Size()))
	}
	if _, err := io.Copy(w, f); err != nil {
		s.logger.WithError(err).WithField("job_id", snap.ID).Warn("Download interrupted")
		return
	}

	s.jobQueue.Remove(snap.ID)
	s.logger.WithField("job_id", snap.ID).Info("Job downloaded and removed")
}

// DownloadName returns "<upload stem>_<target>.docx".
func DownloadName(upload, target string) string {
	base := filepath.Base(upload)
	return fmt.Sprintf("%s_%s.docx", strings.TrimSuffix(base, filepath.Ext(base)), target)
}

// handleHealth provides a health check endpoint.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"jobs":   s.jobQueue.Len(),
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Warn("Failed to write response")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
