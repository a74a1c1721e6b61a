package lock

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label constants for metrics.
const (
	LabelWorkspace = "workspace"
	LabelStatus    = "status"
	LabelReason    = "reason"
	LabelResult    = "result"
)

// Status constants for lock acquisition.
const (
	StatusGranted = "granted"
	StatusDenied  = "denied"
)

// Reason constants for lock release.
const (
	ReasonExplicit = "explicit"
	ReasonExpired  = "expired"
	ReasonRemoved  = "removed"
)

// Result constants for RequireUnlocked checks.
const (
	CheckUnlocked = "unlocked"
	CheckOwner    = "owner"
	CheckRejected = "rejected"
)

// Metrics provides Prometheus metrics for file locks.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	acquireTotal *prometheus.CounterVec
	releaseTotal *prometheus.CounterVec
	checkTotal   *prometheus.CounterVec
}

// NewMetrics creates lock metrics and registers them with registry.
// If registry is nil, metrics are created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "locks",
				Name:      "acquire_total",
				Help:      "Total number of lock acquire attempts",
			},
			[]string{LabelWorkspace, LabelStatus},
		),
		releaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "locks",
				Name:      "release_total",
				Help:      "Total number of lock releases",
			},
			[]string{LabelWorkspace, LabelReason},
		),
		checkTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dittovfs",
				Subsystem: "locks",
				Name:      "check_total",
				Help:      "Lock ownership checks performed before mutations",
			},
			[]string{LabelWorkspace, LabelResult},
		),
	}

	if registry != nil {
		registry.MustRegister(m.acquireTotal, m.releaseTotal, m.checkTotal)
	}
	return m
}

// ObserveAcquire records a lock attempt.
func (m *Metrics) ObserveAcquire(workspace string, granted bool) {
	if m == nil {
		return
	}
	status := StatusGranted
	if !granted {
		status = StatusDenied
	}
	m.acquireTotal.WithLabelValues(workspace, status).Inc()
}

// ObserveRelease records a lock release.
func (m *Metrics) ObserveRelease(workspace, reason string) {
	if m == nil {
		return
	}
	m.releaseTotal.WithLabelValues(workspace, reason).Inc()
}

// ObserveCheck records the outcome of a RequireUnlocked call.
func (m *Metrics) ObserveCheck(workspace, result string) {
	if m == nil {
		return
	}
	m.checkTotal.WithLabelValues(workspace, result).Inc()
}
