package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit log.
type Metrics struct {
	appends        *prometheus.CounterVec
	appendFailures prometheus.Counter
}

// New creates and registers audit metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		appends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_audit_appends_total",
			Help: "Audit records appended, labeled by classification tier.",
		}, []string{"classification"}),
		appendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veris_audit_append_failures_total",
			Help: "Audit append attempts that failed and propagated to the caller.",
		}),
	}
}

func (m *Metrics) IncAppends(classification string) {
	m.appends.WithLabelValues(classification).Inc()
}

func (m *Metrics) IncAppendFailures() {
	m.appendFailures.Inc()
}
