package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/dittovfs/pkg/search"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/lock"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// Collectors groups the per-component metrics of one server.
//
// A nil *Collectors hands out nil component metrics, which record nothing.
type Collectors struct {
	Tree   *tree.Metrics
	Locks  *lock.Metrics
	Events *events.Metrics
	Search *search.Metrics
}

// NewCollectors creates every component's metrics and registers them with
// reg. Returns nil when reg is nil (metrics disabled).
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		return nil
	}
	return &Collectors{
		Tree:   tree.NewMetrics(reg),
		Locks:  lock.NewMetrics(reg),
		Events: events.NewMetrics(reg),
		Search: search.NewMetrics(reg),
	}
}

// TreeMetrics returns the tree collectors, nil-safe.
func (c *Collectors) TreeMetrics() *tree.Metrics {
	if c == nil {
		return nil
	}
	return c.Tree
}

// LockMetrics returns the lock collectors, nil-safe.
func (c *Collectors) LockMetrics() *lock.Metrics {
	if c == nil {
		return nil
	}
	return c.Locks
}

// EventMetrics returns the event bus collectors, nil-safe.
func (c *Collectors) EventMetrics() *events.Metrics {
	if c == nil {
		return nil
	}
	return c.Events
}

// SearchMetrics returns the search index collectors, nil-safe.
func (c *Collectors) SearchMetrics() *search.Metrics {
	if c == nil {
		return nil
	}
	return c.Search
}
