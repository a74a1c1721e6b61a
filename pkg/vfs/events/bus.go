package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
)

type subscription struct {
	id      uint64
	kind    Kind // zero matches every kind
	name    string
	handler Handler
}

// Bus is a typed publish/subscribe registry.
type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	nextID  uint64
	metrics *Metrics
	now     func() time.Time
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithMetrics attaches Prometheus metrics to the bus.
func WithMetrics(m *Metrics) BusOption {
	return func(b *Bus) { b.metrics = m }
}

// WithClock overrides the timestamp source for events published without one.
func WithClock(now func() time.Time) BusOption {
	return func(b *Bus) { b.now = now }
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events of kind. The returned function removes
// the subscription.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	return b.add(kind, h)
}

// SubscribeAll registers h for every kind.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.add(0, h)
}

func (b *Bus) add(kind Kind, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{id: b.nextID, kind: kind, name: handlerName(h), handler: h}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			// Copy so snapshots taken by in-flight publishes stay intact.
			subs := make([]*subscription, 0, len(b.subs)-1)
			subs = append(subs, b.subs[:i]...)
			b.subs = append(subs, b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers ev to every matching handler, in subscription order.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	b.metrics.ObservePublish(ev.Kind)
	for _, s := range subs {
		if s.kind != 0 && s.kind != ev.Kind {
			continue
		}
		if err := deliver(ctx, s.handler, ev); err != nil {
			b.metrics.ObserveFailure(ev.Kind)
			logger.WarnCtx(ctx, "Event subscriber failed",
				logger.KeyEvent, ev.String(),
				logger.KeySubscriber, s.name,
				logger.KeyError, err)
		}
	}
}

// deliver runs one handler, converting a panic into an error.
func deliver(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.HandleEvent(ctx, ev)
}

func handlerName(h Handler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", h)
}
