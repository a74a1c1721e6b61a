package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for tree operations.
const (
	AttrWorkspace = "vfs.workspace"
	AttrOperation = "vfs.operation"
	AttrItemID    = "vfs.item_id"
	AttrPath      = "vfs.path"
	AttrOldPath   = "vfs.old_path"
	AttrName      = "vfs.name"
	AttrSize      = "vfs.size"
	AttrFolder    = "vfs.folder"
	AttrPrincipal = "vfs.principal"
	AttrErrorCode = "vfs.error_code"
	AttrEvent     = "vfs.event"

	AttrHTTPRoute = "http.route"
)

// Workspace returns an attribute for the workspace id.
func Workspace(ws string) attribute.KeyValue {
	return attribute.String(AttrWorkspace, ws)
}

// ItemID returns an attribute for an item identifier.
func ItemID(id string) attribute.KeyValue {
	return attribute.String(AttrItemID, id)
}

// Path returns an attribute for an item path.
func Path(p string) attribute.KeyValue {
	return attribute.String(AttrPath, p)
}

// OldPath returns an attribute for the source path of a move or rename.
func OldPath(p string) attribute.KeyValue {
	return attribute.String(AttrOldPath, p)
}

// Name returns an attribute for an item name.
func Name(n string) attribute.KeyValue {
	return attribute.String(AttrName, n)
}

// Size returns an attribute for a content length.
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// Folder returns an attribute telling whether the item is a folder.
func Folder(isFolder bool) attribute.KeyValue {
	return attribute.Bool(AttrFolder, isFolder)
}

// Principal returns an attribute for the acting user.
func Principal(user string) attribute.KeyValue {
	return attribute.String(AttrPrincipal, user)
}

// ErrorCode returns an attribute for a typed error code.
func ErrorCode(code string) attribute.KeyValue {
	return attribute.String(AttrErrorCode, code)
}

// HTTPRoute returns an attribute for the matched REST route.
func HTTPRoute(route string) attribute.KeyValue {
	return attribute.String(AttrHTTPRoute, route)
}

// StartTreeSpan starts a span named "vfs.<operation>" for a tree operation.
func StartTreeSpan(ctx context.Context, workspace, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, 2+len(attrs))
	all = append(all, Workspace(workspace), attribute.String(AttrOperation, operation))
	all = append(all, attrs...)
	return StartSpan(ctx, "vfs."+operation, trace.WithAttributes(all...))
}

// StartSearchSpan starts a span for a search index operation.
func StartSearchSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "search."+operation, trace.WithAttributes(attrs...))
}
