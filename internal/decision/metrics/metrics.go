package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the decision engine.
type Metrics struct {
	finalized       *prometheus.CounterVec
	finalizeSeconds prometheus.Histogram
}

// New creates and registers decision metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		finalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_decisions_finalized_total",
			Help: "Decision packets finalized, labeled by resolved decision.",
		}, []string{"decision"}),
		finalizeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veris_decision_finalize_seconds",
			Help:    "Wall time of packet finalization including the audit write.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveFinalize(decision string, d time.Duration) {
	m.finalized.WithLabelValues(decision).Inc()
	m.finalizeSeconds.Observe(d.Seconds())
}
