package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_jobs_total",
			Help: "Translation jobs by status transition",
		},
		[]string{"status"},
	)

	jobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdftrans_jobs_in_progress",
			Help: "Translation jobs currently being processed",
		},
	)

	jobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdftrans_job_duration_seconds",
			Help:    "Wall time of translation jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)
)

func recordJob(status TranslationJobStatus) {
	jobsTotal.WithLabelValues(string(status)).Inc()
}
