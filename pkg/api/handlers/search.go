package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/search"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// SearchHandler handles GET /api/v1/workspaces/{ws}/search.
type SearchHandler struct {
	registry *mount.Registry
	index    *search.Index
}

// NewSearchHandler creates a new SearchHandler. A nil index answers every
// query with 501 Not Implemented.
func NewSearchHandler(registry *mount.Registry, index *search.Index) *SearchHandler {
	return &SearchHandler{registry: registry, index: index}
}

// SearchResponse is the response body of a search.
type SearchResponse struct {
	Query []string     `json:"query"`
	Items []*tree.Item `json:"items"`
}

// Search handles GET /api/v1/workspaces/{ws}/search?q=<terms>&limit=<n>.
//
// Every term must match (AND). The index is consulted first; hits the caller
// may not read, and hits that vanished since they were indexed, are dropped,
// so a page can hold fewer than limit items.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		WriteError(w, r, vfserrors.NewNotSupportedError("search"))
		return
	}

	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	terms := strings.Fields(r.URL.Query().Get("q"))
	limit, ok := queryInt(r, "limit")
	if !ok {
		BadRequest(w, "limit must be a non-negative integer")
		return
	}

	paths, err := h.index.Search(r.Context(), chi.URLParam(r, "ws"), terms, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	ac := authContext(r)
	resp := SearchResponse{Query: terms, Items: make([]*tree.Item, 0, len(paths))}
	for _, p := range paths {
		item, err := t.GetItemByPath(ac, p)
		if err != nil {
			if vfserrors.IsNotFoundError(err) || vfserrors.IsForbidden(err) {
				continue
			}
			WriteError(w, r, err)
			return
		}
		resp.Items = append(resp.Items, item)
	}

	logger.DebugCtx(r.Context(), "Search served",
		logger.KeyWorkspace, t.Workspace(), logger.KeyCount, len(resp.Items))
	WriteJSONOK(w, resp)
}
