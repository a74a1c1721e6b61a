package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/api"
	"github.com/marmos91/dittovfs/pkg/api/auth"
	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/metrics"
	"github.com/marmos91/dittovfs/pkg/search"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
)

// vfsServer wires the configured workspaces to the event bus, the search
// index and the HTTP servers.
type vfsServer struct {
	cfg      *config.Config
	bus      *events.Bus
	registry *mount.Registry
	index    *search.Index
	jwt      *auth.JWTService

	unsubscribe func()

	api     *api.Server
	metrics *metrics.Server
}

// newVFSServer mounts every configured workspace. collectors may be nil.
// On failure everything mounted so far is released.
func newVFSServer(ctx context.Context, cfg *config.Config, collectors *metrics.Collectors) (*vfsServer, error) {
	s := &vfsServer{
		cfg:      cfg,
		bus:      events.NewBus(events.WithMetrics(collectors.EventMetrics())),
		registry: mount.NewRegistry(),
	}
	if err := s.assemble(ctx, collectors); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *vfsServer) assemble(ctx context.Context, collectors *metrics.Collectors) error {
	cfg := s.cfg

	var err error
	if cfg.Search.IsEnabled() {
		s.index, err = search.Open(ctx, search.Config{
			Path:       cfg.Search.Path,
			InMemory:   cfg.Search.InMemory,
			Properties: s.registry,
			Metrics:    collectors.SearchMetrics(),
		})
		if err != nil {
			return fmt.Errorf("failed to open search index: %w", err)
		}
		s.unsubscribe = s.bus.SubscribeAll(s.index)
	}

	for _, ws := range cfg.Workspaces {
		if err := s.mount(ctx, ws, collectors); err != nil {
			return err
		}
	}

	if cfg.Auth.Secret != "" {
		s.jwt, err = auth.NewJWTService(auth.JWTConfig{
			Secret:        cfg.Auth.Secret,
			Issuer:        cfg.Auth.Issuer,
			TokenDuration: cfg.Auth.TokenTTL,
		})
		if err != nil {
			return fmt.Errorf("failed to create JWT service: %w", err)
		}
	}

	if cfg.Server.IsEnabled() {
		s.api, err = api.NewServer(cfg.Server, api.Dependencies{
			Registry:           s.registry,
			Index:              s.index,
			JWT:                s.jwt,
			AllowAnonymous:     cfg.Auth.AllowAnonymous,
			DefaultLockTimeout: cfg.Locks.DefaultTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		s.metrics = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
	}

	return nil
}

func (s *vfsServer) mount(ctx context.Context, ws config.WorkspaceConfig, collectors *metrics.Collectors) error {
	p, err := mount.NewProvider(mount.Options{
		Workspace:     ws.ID,
		Publisher:     s.bus,
		Watch:         ws.Watch,
		SweepInterval: s.cfg.Locks.SweepInterval,
		LockMetrics:   collectors.LockMetrics(),
		TreeMetrics:   collectors.TreeMetrics(),
	})
	if err != nil {
		return fmt.Errorf("workspace %q: %w", ws.ID, err)
	}
	if err := p.Mount(ws.Root); err != nil {
		return fmt.Errorf("workspace %q: %w", ws.ID, err)
	}
	if err := s.registry.Add(p); err != nil {
		_ = p.Unmount()
		return err
	}

	if s.index == nil {
		return nil
	}
	t, err := p.Tree()
	if err != nil {
		return err
	}
	if _, err := s.index.Rebuild(ctx, ws.ID, t.Store()); err != nil {
		logger.Warn("Search index rebuild failed", logger.KeyWorkspace, ws.ID, logger.Err(err))
	}
	return nil
}

// Serve runs the HTTP servers until ctx is cancelled or one of them fails.
// Without any server it only waits for ctx.
func (s *vfsServer) Serve(ctx context.Context) error {
	if s.api == nil && s.metrics == nil {
		<-ctx.Done()
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if s.api != nil {
		g.Go(func() error { return s.api.Start(gctx) })
	}
	if s.metrics != nil {
		g.Go(func() error { return s.metrics.Start(gctx) })
	}
	return g.Wait()
}

// Shutdown stops the HTTP servers within the configured shutdown timeout and
// then releases the workspaces.
func (s *vfsServer) Shutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if s.api != nil {
		errs = append(errs, s.api.Stop(ctx))
	}
	if s.metrics != nil {
		errs = append(errs, s.metrics.Stop(ctx))
	}
	errs = append(errs, s.Close())
	return errors.Join(errs...)
}

// Close unmounts the workspaces and closes the search index.
func (s *vfsServer) Close() error {
	var errs []error
	if err := s.registry.CloseAll(); err != nil {
		errs = append(errs, fmt.Errorf("unmount workspaces: %w", err))
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close search index: %w", err))
		}
		s.index = nil
	}
	return errors.Join(errs...)
}
