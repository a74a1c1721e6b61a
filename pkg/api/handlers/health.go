package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/dittovfs/pkg/search"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is at least one workspace mounted?
type HealthHandler struct {
	registry  *mount.Registry
	index     *search.Index
	startedAt time.Time
}

// NewHealthHandler creates a new health handler.
//
// The registry parameter may be nil, in which case readiness returns an
// unhealthy status. The index is optional.
func NewHealthHandler(registry *mount.Registry, index *search.Index) *HealthHandler {
	return &HealthHandler{registry: registry, index: index, startedAt: time.Now()}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	writeJSON(w, http.StatusOK, healthyResponse(LivenessResponse{
		Service:   "dittovfs",
		StartedAt: h.startedAt.UTC().Format(time.RFC3339),
		Uptime:    uptime.Round(time.Second).String(),
		UptimeSec: int64(uptime.Seconds()),
	}))
}

// LivenessResponse identifies the running server.
type LivenessResponse struct {
	Service   string `json:"service"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// ReadinessResponse lists the workspaces served.
type ReadinessResponse struct {
	Workspaces []string `json:"workspaces"`
	Mounted    int      `json:"mounted"`
	Search     bool     `json:"search"`
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 503 Service Unavailable until at least one workspace is mounted.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	resp := ReadinessResponse{Workspaces: h.registry.List(), Search: h.index != nil}
	for _, ws := range resp.Workspaces {
		if p, err := h.registry.Get(ws); err == nil && p.Mounted() {
			resp.Mounted++
		}
	}

	if resp.Mounted == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no workspace mounted"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(resp))
}
