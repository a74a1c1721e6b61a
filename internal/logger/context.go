package logger

import (
	"context"
	"time"
)

type logContextKey struct{}

// LogContext carries request-scoped fields that *Ctx log calls prepend to
// every record. Values are treated as immutable; the With* methods return
// modified copies and are safe on a nil receiver.
type LogContext struct {
	RequestID string
	TraceID   string
	SpanID    string
	Operation string
	Workspace string
	Principal string // empty for anonymous callers
	StartTime time.Time
}

// NewLogContext starts a LogContext for one transport request.
func NewLogContext(requestID string) *LogContext {
	return &LogContext{RequestID: requestID, StartTime: time.Now()}
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext returns the LogContext attached to ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// Clone returns a shallow copy of lc.
func (lc *LogContext) Clone() *LogContext {
	return lc.with(func(*LogContext) {})
}

func (lc *LogContext) with(set func(*LogContext)) *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	set(&c)
	return &c
}

func (lc *LogContext) WithOperation(op string) *LogContext {
	return lc.with(func(c *LogContext) { c.Operation = op })
}

func (lc *LogContext) WithWorkspace(ws string) *LogContext {
	return lc.with(func(c *LogContext) { c.Workspace = ws })
}

func (lc *LogContext) WithPrincipal(principal string) *LogContext {
	return lc.with(func(c *LogContext) { c.Principal = principal })
}

// WithTrace records the OpenTelemetry ids of the request span.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	return lc.with(func(c *LogContext) {
		c.TraceID = traceID
		c.SpanID = spanID
	})
}

// DurationMs is the time since the request started, in milliseconds.
// It is zero for a nil or unstarted context.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000
}
