package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request
	KeyRequestID = "request_id"
	KeyOperation = "operation"
	KeyMethod    = "method"
	KeyStatus    = "status"
	KeyRemote    = "remote"

	// Tree
	KeyWorkspace = "workspace"
	KeyItemID    = "item_id"
	KeyPath      = "path"
	KeyOldPath   = "old_path"
	KeyName      = "name"
	KeyFolder    = "folder"
	KeySize      = "size"
	KeyMediaType = "media_type"

	// Authorization and locking
	KeyPrincipal = "principal"
	KeyRequired  = "required"
	KeyLockToken = "lock_token"
	KeyExpiry    = "expiry"

	// Events
	KeyEvent      = "event"
	KeySubscriber = "subscriber"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyCount      = "count"
	KeyRoot       = "root"
)

// Path returns a slog.Attr for an item path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// OldPath returns a slog.Attr for the source path of a move or rename
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// Workspace returns a slog.Attr for a workspace id
func Workspace(ws string) slog.Attr {
	return slog.String(KeyWorkspace, ws)
}

// ItemID returns a slog.Attr for an opaque item identifier
func ItemID(id string) slog.Attr {
	return slog.String(KeyItemID, id)
}

// Principal returns a slog.Attr for the acting principal
func Principal(name string) slog.Attr {
	if name == "" {
		name = "anonymous"
	}
	return slog.String(KeyPrincipal, name)
}

// LockToken returns a slog.Attr for a lock token. Only the first eight
// characters are logged.
func LockToken(token string) slog.Attr {
	if len(token) > 8 {
		token = token[:8] + "…"
	}
	return slog.String(KeyLockToken, token)
}

// Err returns a slog.Attr for an error; nil errors log as an empty string.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns a slog.Attr with the time elapsed since start.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}
