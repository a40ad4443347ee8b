package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftrans_units_total",
			Help: "Total number of processed units by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdftrans_phase_duration_seconds",
			Help:    "Duration of pipeline phases in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"phase"},
	)
)

func recordUnit(phase Phase, outcome string) {
	unitsTotal.WithLabelValues(string(phase), outcome).Inc()
}
