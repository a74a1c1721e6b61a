package mount

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// Registry maps workspace ids to providers. It is safe for concurrent use.
//
// Example usage:
//
//	reg := NewRegistry()
//	p, _ := NewProvider(Options{Workspace: "docs", Publisher: bus})
//	_ = p.Mount("/srv/docs")
//	_ = reg.Add(p)
//
//	t, _ := reg.Tree("docs")
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*Provider)}
}

// Add registers p under its workspace id.
// Returns an error if the workspace is already registered.
func (r *Registry) Add(p *Provider) error {
	if p == nil {
		return fmt.Errorf("cannot register nil provider")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ws := p.Workspace()
	if _, exists := r.providers[ws]; exists {
		return fmt.Errorf("workspace %q already registered", ws)
	}
	r.providers[ws] = p
	return nil
}

// Get returns the provider of workspace ws.
func (r *Registry) Get(ws string) (*Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[ws]
	if !ok {
		return nil, vfserrors.NewNotMountedError(ws)
	}
	return p, nil
}

// Tree returns the tree of workspace ws, which must be registered and
// mounted.
func (r *Registry) Tree(ws string) (*tree.Tree, error) {
	p, err := r.Get(ws)
	if err != nil {
		return nil, err
	}
	return p.Tree()
}

// ReadProperties returns the user properties of the item at p in workspace
// ws, without access checks. It lets the search index read property values.
func (r *Registry) ReadProperties(ctx context.Context, ws, p string) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := r.Tree(ws)
	if err != nil {
		return nil, err
	}
	props, err := t.Store().ReadProperties(p)
	if err != nil {
		return nil, err
	}
	for key := range props {
		if strings.HasPrefix(key, tree.SystemPropertyPrefix) {
			delete(props, key)
		}
	}
	return props, nil
}

// Remove unmounts workspace ws if needed and forgets it. The registry lock
// is not held while unmounting, so event handlers can keep resolving trees.
func (r *Registry) Remove(ws string) error {
	p, err := r.Get(ws)
	if err != nil {
		return err
	}
	if p.Mounted() {
		if err := p.Unmount(); err != nil {
			return err
		}
	}
	r.forget(ws, p)
	return nil
}

// forget drops ws if it still maps to p.
func (r *Registry) forget(ws string, p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.providers[ws] == p {
		delete(r.providers, ws)
	}
}

// List returns the registered workspace ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for ws := range r.providers {
		ids = append(ids, ws)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll unmounts every mounted provider and empties the registry. Every
// provider is attempted; the returned error joins the failures, and the
// providers that failed stay registered.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	providers := make(map[string]*Provider, len(r.providers))
	for ws, p := range r.providers {
		providers[ws] = p
	}
	r.mu.RUnlock()

	var errs []error
	for ws, p := range providers {
		if p.Mounted() {
			if err := p.Unmount(); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		r.forget(ws, p)
	}
	return errors.Join(errs...)
}
