package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
)

// drainTimeout bounds the shutdown Start performs when its context ends.
// Callers wanting a different bound call Stop themselves first.
const drainTimeout = 5 * time.Second

// Server serves the REST API over HTTP.
type Server struct {
	http *http.Server
	port int

	mu   sync.Mutex
	ln   net.Listener
	stop sync.Once
}

// NewServer returns a stopped server over deps; call Start to serve.
// Zero config fields take their defaults.
func NewServer(config APIConfig, deps Dependencies) (*Server, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("api: workspace registry is required")
	case deps.JWT == nil && !deps.AllowAnonymous:
		return nil, errors.New("api: a JWT secret is required unless anonymous access is allowed")
	}
	config.ApplyDefaults()

	return &Server{
		port: config.Port,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      NewRouter(config, deps),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}, nil
}

// Start listens and serves until ctx is done, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("API server failed to listen: %w", err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	logger.Info("API server listening", "port", s.Port(),
		"base_url", fmt.Sprintf("http://localhost:%d/api/v1", s.Port()))

	served := make(chan error, 1)
	go func() { served <- s.http.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return s.Stop(drainCtx)
	}
}

// Stop drains in-flight requests until ctx ends. Only the first call does
// anything; it may race with Start.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		if err = s.http.Shutdown(ctx); err != nil {
			logger.Error("API server shutdown error", logger.Err(err))
			err = fmt.Errorf("API server shutdown error: %w", err)
			return
		}
		logger.Info("API server stopped")
	})
	return err
}

// Port is the bound port once listening, the configured one before.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		if addr, ok := s.ln.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.port
}
