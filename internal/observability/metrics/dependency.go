package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/resilience"
)

// DependencyMetrics implements resilience.Observer.
type DependencyMetrics struct {
	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewDependencyMetrics(service string, registerer prometheus.Registerer) *DependencyMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "rrr",
			Subsystem:   "dependency",
			Name:        "retries_total",
			Help:        "Retried dependency calls by operation.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   "rrr",
			Subsystem:   "dependency",
			Name:        "circuit_breaker_state",
			Help:        "Circuit breaker state by operation: 0 closed, 1 half-open, 2 open.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	registerer.MustRegister(retriesTotal, breakerState)

	return &DependencyMetrics{retriesTotal: retriesTotal, breakerState: breakerState}
}

func (m *DependencyMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *DependencyMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}

var _ resilience.Observer = (*DependencyMetrics)(nil)
