package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the tenancy guard.
type Metrics struct {
	crossTenantBlocks *prometheus.CounterVec
}

// New creates and registers tenancy metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		crossTenantBlocks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veris_tenancy_cross_tenant_blocks_total",
			Help: "Fetches denied because the record belongs to another org.",
		}, []string{"collection"}),
	}
}

func (m *Metrics) IncCrossTenantBlocks(collection string) {
	m.crossTenantBlocks.WithLabelValues(collection).Inc()
}
