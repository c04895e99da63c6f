package jobs

import (
	"github.com/mohammad-safakhou/webscraper/internal/queue/streams"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks worker progress and consumer group backlog.
type Metrics struct {
	processed *prometheus.CounterVec
	pending   prometheus.Gauge
	lag       prometheus.Gauge
	oldest    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webscraper_jobs_processed_total",
			Help: "Stream entries handled by the extraction worker, by result.",
		}, []string{"result"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webscraper_queue_pending",
			Help: "Entries delivered to the consumer group but not yet acknowledged.",
		}),
		lag: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webscraper_queue_lag",
			Help: "Entries in the stream not yet delivered to the consumer group.",
		}),
		oldest: factory.NewGauge(prometheus.GaugeOpts{
			Name: "webscraper_queue_oldest_pending_seconds",
			Help: "Idle time of the oldest unacknowledged entry.",
		}),
	}
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(result).Inc()
}

func (m *Metrics) setLag(l streams.LagMetrics) {
	if m == nil {
		return
	}
	m.pending.Set(float64(l.Pending))
	m.oldest.Set(l.OldestIdle.Seconds())
	if l.Lag >= 0 {
		m.lag.Set(float64(l.Lag))
	}
}
