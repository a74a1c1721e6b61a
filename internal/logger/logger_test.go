package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput points the logger at a buffer with color off. The
// returned func restores the previous sink and level.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	saved := cur
	cur.w, cur.closer, cur.color = buf, nil, false
	rebuild()
	mu.Unlock()
	savedLevel := level.Level()

	return buf, func() {
		mu.Lock()
		cur = saved
		rebuild()
		mu.Unlock()
		level.Set(savedLevel)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.Contains(t, out, "[DEBUG] debug message")
		assert.Contains(t, out, "[INFO] info message")
		assert.Contains(t, out, "[WARN] warn message")
		assert.Contains(t, out, "[ERROR] error message")
	})

	t.Run("WarnLevelFiltersInfoAndDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("WARN")

		Debug("debug message")
		Info("info message")
		Warn("warn message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
	})

	t.Run("InvalidLevelIsIgnored", func(t *testing.T) {
		_, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")
		SetLevel("VERBOSE")
		assert.False(t, Enabled(LevelWarn))
		assert.True(t, Enabled(LevelError))
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{" INFO ", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"trace", LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTextFormatFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetLevel("INFO")

	Info("item created", KeyPath, "/docs/a.txt", KeySize, 5, KeyName, "two words")

	out := buf.String()
	assert.Contains(t, out, "path=/docs/a.txt")
	assert.Contains(t, out, "size=5")
	assert.Contains(t, out, `name="two words"`)
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetLevel("INFO")

	Info("lock acquired", Path("/f.txt"), LockToken("0123456789abcdef"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "lock acquired", rec["msg"])
	assert.Equal(t, "/f.txt", rec[KeyPath])
	assert.Equal(t, "01234567…", rec[KeyLockToken])
}

func TestContextFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetLevel("DEBUG")

	lc := NewLogContext("req-1").WithWorkspace("ws").WithPrincipal("alice").WithOperation("delete")
	ctx := WithContext(context.Background(), lc)

	DebugCtx(ctx, "deleting", KeyPath, "/x")

	line := buf.String()
	assert.Contains(t, line, "request_id=req-1")
	assert.Contains(t, line, "workspace=ws")
	assert.Contains(t, line, "principal=alice")
	assert.Contains(t, line, "operation=delete")
	assert.Less(t, strings.Index(line, "request_id"), strings.Index(line, "path=/x"))
}

func TestContextWithoutLogContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	InfoCtx(context.Background(), "plain")
	assert.Contains(t, buf.String(), "plain")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestLogContextClone(t *testing.T) {
	lc := NewLogContext("r")
	clone := lc.WithPrincipal("bob")

	assert.Empty(t, lc.Principal)
	assert.Equal(t, "bob", clone.Principal)
	assert.Equal(t, "r", clone.RequestID)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.WithWorkspace("ws"))
	assert.Zero(t, nilCtx.DurationMs())
}

func TestGroupedAttrs(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	SetLevel("INFO")

	With().WithGroup("event").Info("published", "kind", "CREATED")
	assert.Contains(t, buf.String(), "event.kind=CREATED")
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, "anonymous", Principal("").Value.String())
	assert.Equal(t, "short", LockToken("short").Value.String())
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "", Err(nil).Value.String())
}

func TestInitWithWriter(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text", false)

	Info("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLevelMapping(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.slogLevel())
	assert.Equal(t, slog.LevelInfo, LevelInfo.slogLevel())
	assert.Equal(t, slog.LevelWarn, LevelWarn.slogLevel())
	assert.Equal(t, slog.LevelError, LevelError.slogLevel())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", Level(9).String())
}

func TestTraceFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	SetLevel("INFO")

	lc := NewLogContext("req-2").WithTrace("4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	InfoCtx(WithContext(context.Background(), lc), "traced")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec[KeyTraceID])
	assert.Equal(t, "00f067aa0ba902b7", rec[KeySpanID])
	assert.Equal(t, "req-2", rec[KeyRequestID])
}
