package search

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittovfs/pkg/vfs/events"
)

// Metrics counts index updates and queries.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	updates *prometheus.CounterVec
	queries prometheus.Counter
}

// NewMetrics creates search metrics and registers them with registry when
// it is not nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "search",
				Name:      "index_events_total",
				Help:      "Change events received by the search index",
			},
			[]string{"kind"},
		),
		queries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "search",
				Name:      "queries_total",
				Help:      "Search queries served",
			},
		),
	}
	if registry != nil {
		registry.MustRegister(m.updates, m.queries)
	}
	return m
}

func (m *Metrics) observeEvent(kind events.Kind) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observeQuery() {
	if m == nil {
		return
	}
	m.queries.Inc()
}
