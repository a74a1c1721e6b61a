package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovfs/pkg/api/middleware"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// LockTokenHeader carries the lock token of mutating requests and is set on
// the response of a successful lock.
const LockTokenHeader = "X-Lock-Token"

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// authContext builds the tree caller of the request.
func authContext(r *http.Request) *tree.AuthContext {
	return &tree.AuthContext{
		Context:    r.Context(),
		Subject:    middleware.SubjectFromContext(r.Context()),
		ClientAddr: r.RemoteAddr,
	}
}

// treeOrError resolves the {ws} URL parameter to a mounted tree.
// Returns nil and false if the workspace is unknown (error response is written automatically).
func treeOrError(w http.ResponseWriter, r *http.Request, registry *mount.Registry) (*tree.Tree, bool) {
	ws := chi.URLParam(r, "ws")
	t, err := registry.Tree(ws)
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return t, true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
