package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the event bus.
type Metrics struct {
	published     *prometheus.CounterVec
	deduplicated  *prometheus.CounterVec
	replayed      *prometheus.CounterVec
	drifted       *prometheus.CounterVec
	relayFailures prometheus.Counter
}

// New creates and registers event bus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_events_published_total",
			Help: "Event records stored, labeled by event type.",
		}, []string{"event_type"}),
		deduplicated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_events_deduplicated_total",
			Help: "Publishes short-circuited by an existing idempotency key.",
		}, []string{"event_type"}),
		replayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_events_replayed_total",
			Help: "Events re-dispatched by replay.",
		}, []string{"event_type"}),
		drifted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_events_drifted_total",
			Help: "Events whose device clock drift exceeded the threshold.",
		}, []string{"event_type"}),
		relayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veris_event_relay_failures_total",
			Help: "Stored events that failed to forward to the external sink.",
		}),
	}
}

func (m *Metrics) IncPublished(eventType string)    { m.published.WithLabelValues(eventType).Inc() }
func (m *Metrics) IncDeduplicated(eventType string) { m.deduplicated.WithLabelValues(eventType).Inc() }
func (m *Metrics) IncReplayed(eventType string)     { m.replayed.WithLabelValues(eventType).Inc() }
func (m *Metrics) IncDrifted(eventType string)      { m.drifted.WithLabelValues(eventType).Inc() }
func (m *Metrics) IncRelayFailures()                { m.relayFailures.Inc() }
