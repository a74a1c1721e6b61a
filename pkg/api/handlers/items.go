package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// propertyFilterPrefix marks listing query parameters that filter children
// by property, e.g. ?prop.owner=alice.
const propertyFilterPrefix = "prop."

// ItemsOptions tunes an ItemsHandler.
type ItemsOptions struct {
	// MaxUploadSize caps the body of content uploads; zero is unlimited
	MaxUploadSize int64

	// DefaultLockTimeout applies to lock requests without a timeout; zero
	// locks never expire
	DefaultLockTimeout time.Duration
}

// ItemsHandler handles the item endpoints of a workspace.
type ItemsHandler struct {
	registry *mount.Registry
	opts     ItemsOptions
}

// NewItemsHandler creates a new ItemsHandler.
func NewItemsHandler(registry *mount.Registry, opts ItemsOptions) *ItemsHandler {
	return &ItemsHandler{registry: registry, opts: opts}
}

// CreateFolderRequest is the request body for POST .../items/{id}/folders.
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// DestinationRequest is the request body for copy and move.
type DestinationRequest struct {
	Destination string `json:"destination"`
}

// RenameRequest is the request body for POST .../items/{id}/rename.
type RenameRequest struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
}

// LockRequest is the request body for POST .../items/{id}/lock.
// A missing timeout uses the server default; zero or less never expires.
type LockRequest struct {
	TimeoutSeconds *int64 `json:"timeout_seconds,omitempty"`
}

// LockResponse is the response body of a successful lock.
type LockResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Get handles GET /api/v1/workspaces/{ws}/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	item, err := t.GetItem(authContext(r), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

// GetByPath handles GET /api/v1/workspaces/{ws}/paths/*.
func (h *ItemsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	item, err := t.GetItemByPath(authContext(r), "/"+chi.URLParam(r, "*"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

// Children handles GET /api/v1/workspaces/{ws}/items/{id}/children.
//
// Query parameters: skip, max, type (file|folder) and prop.<name>=<value>.
func (h *ItemsHandler) Children(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	opts, ok := listOptions(w, r)
	if !ok {
		return
	}

	page, err := t.ListChildren(authContext(r), chi.URLParam(r, "id"), opts)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, page)
}

func listOptions(w http.ResponseWriter, r *http.Request) (tree.ListOptions, bool) {
	var opts tree.ListOptions
	var ok bool

	if opts.Skip, ok = queryInt(r, "skip"); !ok {
		BadRequest(w, "skip must be a non-negative integer")
		return opts, false
	}
	if opts.Max, ok = queryInt(r, "max"); !ok {
		BadRequest(w, "max must be a non-negative integer")
		return opts, false
	}

	kind, err := tree.ParseKind(r.URL.Query().Get("type"))
	if err != nil {
		BadRequest(w, err.Error())
		return opts, false
	}
	opts.Type = kind

	for key, values := range r.URL.Query() {
		name, found := strings.CutPrefix(key, propertyFilterPrefix)
		if !found {
			continue
		}
		if name == "" {
			BadRequest(w, "property filter needs a name")
			return opts, false
		}
		if opts.Properties == nil {
			opts.Properties = make(map[string]string)
		}
		opts.Properties[name] = values[0]
	}
	return opts, true
}

// Content handles GET /api/v1/workspaces/{ws}/items/{id}/content.
// Range and conditional requests are honored.
func (h *ItemsHandler) Content(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	rc, item, err := t.OpenContent(authContext(r), chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", item.MediaType)
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, item.Name, item.Modified, rs)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// CreateFile handles POST /api/v1/workspaces/{ws}/items/{id}/files?name=&media_type=.
// The request body is the file content.
func (h *ItemsHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		BadRequest(w, "name query parameter is required")
		return
	}

	item, err := t.CreateFile(authContext(r), chi.URLParam(r, "id"), name, h.body(w, r), r.URL.Query().Get("media_type"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", itemLocation(r, item))
	WriteJSONCreated(w, item)
}

// UploadFile handles PUT /api/v1/workspaces/{ws}/items/{id}/files/{name}.
// It creates the file or overwrites an existing one; the status tells which.
func (h *ItemsHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	item, created, err := t.UploadFile(authContext(r), chi.URLParam(r, "id"), chi.URLParam(r, "name"),
		h.body(w, r), r.URL.Query().Get("media_type"), r.Header.Get(LockTokenHeader))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if created {
		w.Header().Set("Location", itemLocation(r, item))
		WriteJSONCreated(w, item)
		return
	}
	WriteJSONOK(w, item)
}

// CreateFolder handles POST /api/v1/workspaces/{ws}/items/{id}/folders.
// A name with slashes creates the missing intermediate folders.
func (h *ItemsHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var req CreateFolderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	item, err := t.CreateFolder(authContext(r), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", itemLocation(r, item))
	WriteJSONCreated(w, item)
}

// UpdateContent handles PUT /api/v1/workspaces/{ws}/items/{id}/content.
func (h *ItemsHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	item, err := t.UpdateContent(authContext(r), chi.URLParam(r, "id"), h.body(w, r), r.Header.Get(LockTokenHeader))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

// UpdateProperties handles PUT /api/v1/workspaces/{ws}/items/{id}/properties.
// The body maps property names to values; an empty list removes a property.
func (h *ItemsHandler) UpdateProperties(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var props map[string][]string
	if !decodeJSONBody(w, r, &props) {
		return
	}

	item, err := t.UpdateProperties(authContext(r), chi.URLParam(r, "id"), props)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

// UpdateACL handles PUT /api/v1/workspaces/{ws}/items/{id}/acl.
// The body replaces the item's ACL; an empty list restores the default.
func (h *ItemsHandler) UpdateACL(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var entries acl.ACL
	if !decodeJSONBody(w, r, &entries) {
		return
	}

	item, err := t.UpdateACL(authContext(r), chi.URLParam(r, "id"), entries)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

// Delete handles DELETE /api/v1/workspaces/{ws}/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	if err := t.Delete(authContext(r), chi.URLParam(r, "id"), r.Header.Get(LockTokenHeader)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Copy handles POST /api/v1/workspaces/{ws}/items/{id}/copy.
func (h *ItemsHandler) Copy(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var req DestinationRequest
	if !decodeDestination(w, r, &req) {
		return
	}

	item, err := t.Copy(authContext(r), chi.URLParam(r, "id"), req.Destination)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", itemLocation(r, item))
	WriteJSONCreated(w, item)
}

// Move handles POST /api/v1/workspaces/{ws}/items/{id}/move.
func (h *ItemsHandler) Move(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var req DestinationRequest
	if !decodeDestination(w, r, &req) {
		return
	}

	item, err := t.Move(authContext(r), chi.URLParam(r, "id"), req.Destination, r.Header.Get(LockTokenHeader))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

func decodeDestination(w http.ResponseWriter, r *http.Request, req *DestinationRequest) bool {
	if !decodeJSONBody(w, r, req) {
		return false
	}
	if req.Destination == "" {
		BadRequest(w, "destination is required")
		return false
	}
	return true
}

// Rename handles POST /api/v1/workspaces/{ws}/items/{id}/rename.
func (h *ItemsHandler) Rename(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var req RenameRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	item, err := t.Rename(authContext(r), chi.URLParam(r, "id"), req.Name, req.MediaType, r.Header.Get(LockTokenHeader))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, item)
}

// Lock handles POST /api/v1/workspaces/{ws}/items/{id}/lock.
// The token is returned in the body and in the X-Lock-Token header.
func (h *ItemsHandler) Lock(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	var req LockRequest
	if r.ContentLength != 0 && !decodeJSONBody(w, r, &req) {
		return
	}
	timeout := h.opts.DefaultLockTimeout
	if req.TimeoutSeconds != nil {
		// Zero or negative asks for a lock that never expires.
		timeout = time.Duration(*req.TimeoutSeconds) * time.Second
	}

	rec, err := t.LockFile(authContext(r), chi.URLParam(r, "id"), timeout)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	resp := LockResponse{Token: rec.Token}
	if !rec.Permanent() {
		expiresAt := rec.Expires.UTC()
		resp.ExpiresAt = &expiresAt
	}
	w.Header().Set(LockTokenHeader, rec.Token)
	WriteJSONOK(w, resp)
}

// Unlock handles POST /api/v1/workspaces/{ws}/items/{id}/unlock.
// The lock token is read from the X-Lock-Token header.
func (h *ItemsHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	t, ok := treeOrError(w, r, h.registry)
	if !ok {
		return
	}

	token := r.Header.Get(LockTokenHeader)
	if token == "" {
		BadRequest(w, LockTokenHeader+" header is required")
		return
	}

	if err := t.Unlock(authContext(r), chi.URLParam(r, "id"), token); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// body returns the request body, capped when an upload limit is set.
func (h *ItemsHandler) body(w http.ResponseWriter, r *http.Request) io.Reader {
	if h.opts.MaxUploadSize > 0 {
		return http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)
	}
	return r.Body
}

// itemLocation returns the URL of item within the current workspace.
func itemLocation(r *http.Request, item *tree.Item) string {
	return "/api/v1/workspaces/" + chi.URLParam(r, "ws") + "/items/" + item.ID
}
