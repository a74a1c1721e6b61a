package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/api/auth"
	"github.com/marmos91/dittovfs/pkg/api/handlers"
	"github.com/marmos91/dittovfs/pkg/api/middleware"
	"github.com/marmos91/dittovfs/pkg/search"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	// Registry resolves workspaces; required
	Registry *mount.Registry

	// Index serves search queries; nil disables search
	Index *search.Index

	// JWT validates bearer tokens; nil accepts no tokens
	JWT *auth.JWTService

	// AllowAnonymous lets requests without a token act as the anonymous subject
	AllowAnonymous bool

	// DefaultLockTimeout applies to lock requests without a timeout
	DefaultLockTimeout time.Duration
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Middleware, in order: request id, real client IP, request logging, panic
// recovery and a per-request timeout.
//
// Routes:
//   - GET  /health, /health/ready
//   - GET  /api/v1/workspaces
//   - GET  /api/v1/workspaces/{ws}
//   - GET  /api/v1/workspaces/{ws}/paths/*
//   - GET  /api/v1/workspaces/{ws}/search
//   - GET, DELETE /api/v1/workspaces/{ws}/items/{id}
//   - GET  .../items/{id}/children, .../items/{id}/content
//   - POST .../items/{id}/files, .../items/{id}/folders
//   - PUT  .../items/{id}/files/{name}, .../content, .../properties, .../acl
//   - POST .../items/{id}/copy, move, rename, lock, unlock
func NewRouter(config APIConfig, deps Dependencies) http.Handler {
	config.ApplyDefaults()

	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(config.RequestTimeout))

	healthHandler := handlers.NewHealthHandler(deps.Registry, deps.Index)
	workspacesHandler := handlers.NewWorkspacesHandler(deps.Registry)
	searchHandler := handlers.NewSearchHandler(deps.Registry, deps.Index)
	itemsHandler := handlers.NewItemsHandler(deps.Registry, handlers.ItemsOptions{
		MaxUploadSize:      config.MaxUploadSize.Int64(),
		DefaultLockTimeout: deps.DefaultLockTimeout,
	})

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Route("/api/v1/workspaces", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.JWT, deps.AllowAnonymous))

		r.Get("/", workspacesHandler.List)
		r.Route("/{ws}", func(r chi.Router) {
			r.Get("/", workspacesHandler.Get)
			r.Get("/paths/*", itemsHandler.GetByPath)
			r.Get("/search", searchHandler.Search)

			r.Route("/items/{id}", func(r chi.Router) {
				r.Get("/", itemsHandler.Get)
				r.Delete("/", itemsHandler.Delete)
				r.Get("/children", itemsHandler.Children)
				r.Get("/content", itemsHandler.Content)
				r.Put("/content", itemsHandler.UpdateContent)
				r.Post("/files", itemsHandler.CreateFile)
				r.Put("/files/{name}", itemsHandler.UploadFile)
				r.Post("/folders", itemsHandler.CreateFolder)
				r.Put("/properties", itemsHandler.UpdateProperties)
				r.Put("/acl", itemsHandler.UpdateACL)
				r.Post("/copy", itemsHandler.Copy)
				r.Post("/move", itemsHandler.Move)
				r.Post("/rename", itemsHandler.Rename)
				r.Post("/lock", itemsHandler.Lock)
				r.Post("/unlock", itemsHandler.Unlock)
			})
		})
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//
// The request id is also placed in the log context so tree operations
// logged on behalf of the request carry it.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyRemote, r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx, span := telemetry.StartSpan(r.Context(), "http "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(telemetry.HTTPRoute(r.URL.Path)),
		)
		defer span.End()

		lc := logger.NewLogContext(requestID)
		if traceID := telemetry.TraceID(ctx); traceID != "" {
			lc = lc.WithTrace(traceID, span.SpanContext().SpanID().String())
		}
		ctx = logger.WithContext(ctx, lc)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.InfoCtx(ctx, "API request completed",
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, lc.DurationMs(),
		)
	})
}
