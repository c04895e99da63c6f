package browseruse

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records extraction outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	extractions  *prometheus.CounterVec
	pollAttempts prometheus.Histogram
	duration     prometheus.Histogram
}

// NewMetrics registers the extraction collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webscraper",
			Name:      "extractions_total",
			Help:      "Browser Use extractions by outcome.",
		}, []string{"outcome"}),
		pollAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webscraper",
			Name:      "poll_attempts",
			Help:      "Status checks performed per extraction task.",
			Buckets:   []float64{1, 2, 5, 10, 20, 45, 90, 180},
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "webscraper",
			Name:      "extraction_duration_seconds",
			Help:      "Wall time from submission to terminal outcome.",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 360, 600},
		}),
	}
}

// Observe records one finished extraction.
func (m *Metrics) Observe(out Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(OutcomeLabel(out.Err)).Inc()
	if out.TaskID != "" {
		m.pollAttempts.Observe(float64(out.Attempts))
	}
	m.duration.Observe(elapsed.Seconds())
}
