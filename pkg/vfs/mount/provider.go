// Package mount binds a workspace to a directory on the local filesystem.
//
// A Provider owns everything that lives exactly as long as a mount: the
// tree, the per-path lock factory, the lock sweeper and the optional
// filesystem watcher. A Registry maps workspace ids to providers.
package mount

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittovfs/internal/logger"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
	"github.com/marmos91/dittovfs/pkg/vfs/lock"
	"github.com/marmos91/dittovfs/pkg/vfs/pathlock"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// Options configures a Provider.
type Options struct {
	// Workspace is the workspace id; it must not contain ':'
	Workspace string

	// Publisher receives the events of the tree and of the watcher
	Publisher events.Publisher

	// Watch republishes changes made to the directory behind the server's back
	Watch bool

	// SweepInterval runs the expired-lock sweeper; zero disables it
	SweepInterval time.Duration

	LockMetrics *lock.Metrics
	TreeMetrics *tree.Metrics

	// Clock overrides time.Now
	Clock func() time.Time
}

// Provider is the mount point of one workspace.
type Provider struct {
	opts  Options
	paths *pathlock.Factory

	mu      sync.RWMutex
	root    string
	tree    *tree.Tree
	watcher *Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// unmounting is set while Unmount waits for the goroutines
	unmounting bool
}

// NewProvider creates an unmounted provider.
func NewProvider(opts Options) (*Provider, error) {
	if err := identity.ValidateWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	return &Provider{opts: opts, paths: pathlock.NewFactory()}, nil
}

// Workspace returns the workspace id.
func (p *Provider) Workspace() string {
	return p.opts.Workspace
}

// Mounted reports whether the provider is mounted.
func (p *Provider) Mounted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tree != nil
}

// Root returns the absolute mount directory, or "" when unmounted.
func (p *Provider) Root() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.root
}

// PathLocks returns the path lock factory shared by every tree this
// provider mounts.
func (p *Provider) PathLocks() *pathlock.Factory {
	return p.paths
}

// Tree returns the tree of the mounted workspace.
func (p *Provider) Tree() (*tree.Tree, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tree == nil {
		return nil, vfserrors.NewNotMountedError(p.opts.Workspace)
	}
	return p.tree, nil
}

// Mount binds the workspace to the existing directory root.
func (p *Provider) Mount(root string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tree != nil {
		return vfserrors.NewAlreadyMountedError(p.opts.Workspace)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve mount root %q: %w", root, err)
	}
	osFs := afero.NewOsFs()
	isDir, err := afero.IsDir(osFs, abs)
	if err != nil {
		return vfserrors.NewInvalidArgumentError(abs, fmt.Sprintf("mount root: %v", err))
	}
	if !isDir {
		return vfserrors.NewInvalidArgumentError(abs, "mount root is not a directory")
	}

	t, err := tree.New(tree.Options{
		Workspace:   p.opts.Workspace,
		Fs:          afero.NewBasePathFs(osFs, abs),
		Publisher:   p.opts.Publisher,
		PathLocks:   p.paths,
		LockMetrics: p.opts.LockMetrics,
		Metrics:     p.opts.TreeMetrics,
		Clock:       p.opts.Clock,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	var w *Watcher
	if p.opts.Watch && p.opts.Publisher != nil {
		w, err = NewWatcher(p.opts.Workspace, abs, p.opts.Publisher)
		if err != nil {
			cancel()
			return err
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}

	if p.opts.SweepInterval > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			t.Locks().RunSweeper(ctx, p.opts.SweepInterval)
		}()
	}

	p.root = abs
	p.tree = t
	p.watcher = w
	p.cancel = cancel

	logger.Info("Workspace mounted",
		logger.KeyWorkspace, p.opts.Workspace,
		logger.KeyRoot, abs,
		"watch", w != nil,
		"sweep_interval", p.opts.SweepInterval)
	return nil
}

// Unmount releases the workspace. It fails while any operation still holds
// a path lock, leaving the provider mounted.
//
// The background goroutines are stopped without holding the provider lock:
// an event handler running on the watcher goroutine may still call Tree
// while Unmount waits for it. The tree stays reachable until they exit.
func (p *Provider) Unmount() error {
	p.mu.Lock()
	if p.tree == nil {
		p.mu.Unlock()
		return vfserrors.NewNotMountedError(p.opts.Workspace)
	}
	if p.unmounting {
		p.mu.Unlock()
		return fmt.Errorf("unmount workspace %q: already in progress", p.opts.Workspace)
	}
	if n := p.paths.Outstanding(); n != 0 {
		p.mu.Unlock()
		return fmt.Errorf("unmount workspace %q: %d path locks still held: %v",
			p.opts.Workspace, n, p.paths.Held())
	}
	p.unmounting = true
	cancel, w := p.cancel, p.watcher
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	if w != nil {
		if err := w.Close(); err != nil {
			logger.Warn("Failed to close watcher", logger.KeyWorkspace, p.opts.Workspace, logger.Err(err))
		}
	}

	p.mu.Lock()
	root := p.root
	p.root, p.tree, p.watcher, p.cancel = "", nil, nil, nil
	p.unmounting = false
	p.mu.Unlock()

	logger.Info("Workspace unmounted", logger.KeyWorkspace, p.opts.Workspace, logger.KeyRoot, root)
	return nil
}
