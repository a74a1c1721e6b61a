// Package pathlock serializes structural mutations by path.
//
// Two acquisitions conflict when any of their paths are equal or one is an
// ancestor of the other. Conflicting callers wait; disjoint subtrees proceed
// in parallel. Entries exist only while held, so the table never grows past
// the number of in-flight mutations, and Outstanding lets tests assert that
// every acquisition was released.
package pathlock

import (
	"context"
	"sort"
	"sync"

	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

type entry struct {
	released chan struct{}
}

// Factory hands out path locks for one mount.
type Factory struct {
	mu      sync.Mutex
	held    map[string]*entry
	waiting int
}

// NewFactory creates an empty Factory.
func NewFactory() *Factory {
	return &Factory{held: make(map[string]*entry)}
}

// Handle is a set of held paths. Release is safe to call more than once.
type Handle struct {
	f     *Factory
	paths []string
	once  sync.Once
}

// Paths returns the normalized paths covered by the handle.
func (h *Handle) Paths() []string {
	return append([]string(nil), h.paths...)
}

// Release frees every path of the handle and wakes conflicting waiters.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.f.mu.Lock()
		for _, p := range h.paths {
			if e, ok := h.f.held[p]; ok {
				delete(h.f.held, p)
				close(e.released)
			}
		}
		h.f.mu.Unlock()
	})
}

// Acquire blocks until every path can be held at once, then holds them all.
// Paths nested inside another requested path are covered by their ancestor.
// Acquisition is all-or-nothing, so callers locking a source and destination
// together cannot deadlock against each other. A cancelled ctx aborts the
// wait.
func (f *Factory) Acquire(ctx context.Context, paths ...string) (*Handle, error) {
	want := normalize(paths)

	for {
		f.mu.Lock()
		blocker := f.conflict(want)
		if blocker == nil {
			for _, p := range want {
				f.held[p] = &entry{released: make(chan struct{})}
			}
			f.mu.Unlock()
			return &Handle{f: f, paths: want}, nil
		}
		f.waiting++
		f.mu.Unlock()

		select {
		case <-blocker.released:
		case <-ctx.Done():
		}

		f.mu.Lock()
		f.waiting--
		f.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// TryAcquire holds the paths if nothing conflicts, without waiting.
func (f *Factory) TryAcquire(paths ...string) (*Handle, bool) {
	want := normalize(paths)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflict(want) != nil {
		return nil, false
	}
	for _, p := range want {
		f.held[p] = &entry{released: make(chan struct{})}
	}
	return &Handle{f: f, paths: want}, true
}

// conflict returns a held entry overlapping any wanted path. Caller holds mu.
func (f *Factory) conflict(want []string) *entry {
	for held, e := range f.held {
		for _, w := range want {
			if identity.IsWithin(held, w) || identity.IsWithin(w, held) {
				return e
			}
		}
	}
	return nil
}

// Outstanding returns the number of held paths.
func (f *Factory) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

// Waiting returns the number of callers blocked in Acquire.
func (f *Factory) Waiting() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting
}

// Held returns the held paths in sorted order.
func (f *Factory) Held() []string {
	f.mu.Lock()
	out := make([]string, 0, len(f.held))
	for p := range f.held {
		out = append(out, p)
	}
	f.mu.Unlock()
	sort.Strings(out)
	return out
}

// normalize cleans paths, drops duplicates and drops paths covered by a
// requested ancestor.
func normalize(paths []string) []string {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, identity.Clean(p))
	}
	sort.Strings(cleaned)

	out := cleaned[:0]
	for _, p := range cleaned {
		covered := false
		for _, kept := range out {
			if identity.IsWithin(p, kept) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, p)
		}
	}
	return out
}
