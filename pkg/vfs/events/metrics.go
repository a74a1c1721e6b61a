package events

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts published events and failed deliveries.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

// NewMetrics creates event metrics and registers them with registry when it
// is not nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Events published on the bus",
			},
			[]string{"kind"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "events",
				Name:      "handler_failures_total",
				Help:      "Subscriber errors and panics swallowed by the bus",
			},
			[]string{"kind"},
		),
	}
	if registry != nil {
		registry.MustRegister(m.published, m.failures)
	}
	return m
}

// ObservePublish records one published event.
func (m *Metrics) ObservePublish(kind Kind) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(kind.String()).Inc()
}

// ObserveFailure records one failed delivery.
func (m *Metrics) ObserveFailure(kind Kind) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind.String()).Inc()
}
