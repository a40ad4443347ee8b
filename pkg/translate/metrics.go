package translate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Provider request metrics
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_provider_requests_total",
			Help: "Total number of translation provider requests",
		},
		[]string{"provider", "status"},
	)

	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdftrans_provider_request_duration_seconds",
			Help:    "Duration of translation provider requests in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"provider", "status"},
	)

	providerRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdftrans_provider_request_size_bytes",
			Help:    "Size of text sent to the translation provider in bytes",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"provider"},
	)

	providerResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdftrans_provider_response_size_bytes",
			Help:    "Size of text returned by the translation provider in bytes",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
		},
		[]string{"provider"},
	)

	providerRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_provider_retries_total",
			Help: "Total number of retried provider requests",
		},
		[]string{"provider", "reason"},
	)

	// Passthrough metrics
	passthroughTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_passthrough_total",
			Help: "Total number of units that kept their original text",
		},
		[]string{"provider", "reason"},
	)
)

// Passthrough reasons.
const (
	ReasonError       = "error"
	ReasonTimeout     = "timeout"
	ReasonEmpty       = "empty"
	ReasonPlaceholder = "placeholder"
	ReasonCanceled    = "canceled"
)

// MetricsCollector records provider metrics under one provider label.
type MetricsCollector struct {
	provider string
}

// NewMetricsCollector creates a new metrics collector for a provider.
func NewMetricsCollector(provider string) *MetricsCollector {
	return &MetricsCollector{provider: provider}
}

// RecordTranslationRequest records metrics for a translation request.
func (mc *MetricsCollector) RecordTranslationRequest(duration time.Duration, success bool, requestSize, responseSize int) {
	status := "success"
	if !success {
		status = "error"
	}

	providerRequestsTotal.WithLabelValues(mc.provider, status).Inc()
	providerRequestDuration.WithLabelValues(mc.provider, status).Observe(duration.Seconds())
	providerRequestSize.WithLabelValues(mc.provider).Observe(float64(requestSize))
	if success {
		providerResponseSize.WithLabelValues(mc.provider).Observe(float64(responseSize))
	}
}

// RecordRetry records a retried request.
func (mc *MetricsCollector) RecordRetry(reason string) {
	providerRetriesTotal.WithLabelValues(mc.provider, reason).Inc()
}

// RecordPassthrough records a unit that kept its source text.
func (mc *MetricsCollector) RecordPassthrough(reason string) {
	passthroughTotal.WithLabelValues(mc.provider, reason).Inc()
}
