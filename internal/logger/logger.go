// Package logger is the process-wide structured logger. It wraps log/slog
// with a colored text handler for terminals, a JSON handler for machines,
// and *Ctx variants that prepend the request's LogContext fields.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// slogLevel maps DEBUG..ERROR onto slog's -4, 0, 4, 8.
func (l Level) slogLevel() slog.Level {
	return slog.Level(4 * (int(l) - int(LevelInfo)))
}

// ParseLevel converts a level name to a Level. Unknown names report false.
func ParseLevel(s string) (Level, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), true
		}
	}
	return LevelInfo, false
}

// Config selects the level, format (text or json) and destination
// (stdout, stderr or a file path).
type Config struct {
	Level  string
	Format string
	Output string
}

// sink is where records go and how they are rendered.
type sink struct {
	w      io.Writer
	closer io.Closer
	color  bool
	format string
}

var (
	mu     sync.Mutex
	cur    = sink{w: os.Stdout, format: "text"}
	level  slog.LevelVar
	active atomic.Pointer[slog.Logger]
)

func init() {
	cur.color = isTerminal(os.Stdout.Fd())
	rebuild()
}

// rebuild swaps in a logger for cur. Callers hold mu, except init.
func rebuild() {
	var h slog.Handler
	if cur.format == "json" {
		h = slog.NewJSONHandler(cur.w, &slog.HandlerOptions{Level: &level})
	} else {
		h = newTextHandler(cur.w, &level, cur.color)
	}
	active.Store(slog.New(h))
}

func openOutput(dest string) (sink, error) {
	switch strings.ToLower(dest) {
	case "stdout":
		return sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}, nil
	case "stderr":
		return sink{w: os.Stderr, color: isTerminal(os.Stderr.Fd())}, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return sink{}, fmt.Errorf("failed to open log file %q: %w", dest, err)
	}
	return sink{w: f, closer: f}, nil
}

// Init applies cfg. Empty fields keep their current setting; a previously
// opened log file is closed when the output changes.
func Init(cfg Config) error {
	if cfg.Output != "" {
		next, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		mu.Lock()
		if cur.closer != nil {
			_ = cur.closer.Close()
		}
		next.format = cur.format
		cur = next
		rebuild()
		mu.Unlock()
	}
	SetLevel(cfg.Level)
	SetFormat(cfg.Format)
	return nil
}

// InitWithWriter sends output to w. Tests use it to capture records.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	mu.Lock()
	cur.w, cur.closer, cur.color = w, nil, enableColor
	rebuild()
	mu.Unlock()

	SetLevel(level)
	SetFormat(format)
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l.slogLevel())
	}
}

// SetFormat switches between "text" and "json". Anything else is ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	mu.Lock()
	cur.format = format
	rebuild()
	mu.Unlock()
}

// Enabled reports whether records at l are emitted.
func Enabled(l Level) bool {
	return l.slogLevel() >= level.Level()
}

func emit(ctx context.Context, l Level, msg string, args []any) {
	if !Enabled(l) {
		return
	}
	active.Load().Log(ctx, l.slogLevel(), msg, withContextFields(ctx, args)...)
}

// Debug logs msg with alternating key/value args or slog.Attr values.
func Debug(msg string, args ...any) { emit(context.Background(), LevelDebug, msg, args) }
func Info(msg string, args ...any)  { emit(context.Background(), LevelInfo, msg, args) }
func Warn(msg string, args ...any)  { emit(context.Background(), LevelWarn, msg, args) }
func Error(msg string, args ...any) { emit(context.Background(), LevelError, msg, args) }

// DebugCtx is Debug with the LogContext fields of ctx prepended.
func DebugCtx(ctx context.Context, msg string, args ...any) { emit(ctx, LevelDebug, msg, args) }
func InfoCtx(ctx context.Context, msg string, args ...any)  { emit(ctx, LevelInfo, msg, args) }
func WarnCtx(ctx context.Context, msg string, args ...any)  { emit(ctx, LevelWarn, msg, args) }
func ErrorCtx(ctx context.Context, msg string, args ...any) { emit(ctx, LevelError, msg, args) }

func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	fields := [...]struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyRequestID, lc.RequestID},
		{KeyOperation, lc.Operation},
		{KeyWorkspace, lc.Workspace},
		{KeyPrincipal, lc.Principal},
	}
	out := make([]any, 0, 2*len(fields)+len(args))
	for _, f := range fields {
		if f.val != "" {
			out = append(out, f.key, f.val)
		}
	}
	return append(out, args...)
}

// With returns a logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return active.Load().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
