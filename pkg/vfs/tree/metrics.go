package tree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const resultOK = "ok"

// Metrics holds the Prometheus collectors of tree operations. A nil
// *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates and registers tree metrics. Pass one instance to every
// tree of a process: registering twice panics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "tree",
				Name:      "operations_total",
				Help:      "Tree operations by workspace, operation and result",
			},
			[]string{"workspace", "operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "dittovfs",
				Subsystem: "tree",
				Name:      "operation_duration_seconds",
				Help:      "Tree operation latency",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"operation"},
		),
	}

	if registry != nil {
		registry.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *Metrics) observe(workspace, op, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(workspace, op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
