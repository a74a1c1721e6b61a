package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovfs/pkg/vfs/identity"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// WorkspacesHandler handles workspace-level endpoints.
type WorkspacesHandler struct {
	registry *mount.Registry
}

// NewWorkspacesHandler creates a new WorkspacesHandler.
func NewWorkspacesHandler(registry *mount.Registry) *WorkspacesHandler {
	return &WorkspacesHandler{registry: registry}
}

// WorkspaceResponse describes one registered workspace.
type WorkspaceResponse struct {
	ID      string `json:"id"`
	Mounted bool   `json:"mounted"`
	RootID  string `json:"root_id"`
}

// WorkspaceDetailResponse is a workspace with the capabilities of its tree.
type WorkspaceDetailResponse struct {
	WorkspaceResponse
	Capabilities tree.Capabilities `json:"capabilities"`
}

// List handles GET /api/v1/workspaces.
// The mount directories are not disclosed.
func (h *WorkspacesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.registry.List()
	resp := make([]WorkspaceResponse, 0, len(ids))
	for _, ws := range ids {
		p, err := h.registry.Get(ws)
		if err != nil {
			// Removed since List
			continue
		}
		resp = append(resp, WorkspaceResponse{ID: ws, Mounted: p.Mounted(), RootID: identity.RootID})
	}
	WriteJSONOK(w, resp)
}

// Get handles GET /api/v1/workspaces/{ws}.
func (h *WorkspacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	WriteJSONOK(w, WorkspaceDetailResponse{
		WorkspaceResponse: WorkspaceResponse{ID: chi.URLParam(r, "ws"), Mounted: true, RootID: identity.RootID},
		Capabilities:      t.Capabilities(),
	})
}
