package mount

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

// Watcher republishes changes made directly to a mount directory as
// External events. Changes made through the tree are seen too and
// republished a second time; subscribers must be idempotent.
//
// Reserved metadata directories are neither watched nor reported.
type Watcher struct {
	workspace string
	root      string
	fs        afero.Fs
	fsw       *fsnotify.Watcher
	publisher events.Publisher

	// dirs holds the watched folders, by item path. Only Run touches it
	// once the watcher is started.
	dirs map[string]struct{}
}

// NewWatcher watches root and every folder below it.
func NewWatcher(workspace, root string, publisher events.Publisher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		workspace: workspace,
		root:      root,
		fs:        afero.NewOsFs(),
		fsw:       fsw,
		publisher: publisher,
		dirs:      make(map[string]struct{}),
	}
	if err := w.addTree(root, nil); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches filesystem notifications until ctx is done or the watcher
// is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("Watcher error", logger.KeyWorkspace, w.workspace, logger.Err(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	p, ok := w.itemPath(ev.Name)
	if !ok {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		info, err := w.fs.Stat(ev.Name)
		if err != nil {
			// Already gone again.
			return
		}
		if !info.IsDir() {
			w.publish(ctx, events.Created, p, false)
			return
		}
		// Entries created before the watch was added would be missed
		// otherwise.
		if err := w.addTree(ev.Name, func(child string, isDir bool) {
			w.publish(ctx, events.Created, child, isDir)
		}); err != nil {
			logger.Warn("Failed to watch new folder",
				logger.KeyWorkspace, w.workspace, logger.KeyPath, p, logger.Err(err))
		}

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		_, isDir := w.dirs[p]
		w.forget(p)
		w.publish(ctx, events.Deleted, p, isDir)

	case ev.Has(fsnotify.Write):
		if _, isDir := w.dirs[p]; !isDir {
			w.publish(ctx, events.ContentUpdated, p, false)
		}
	}
}

// addTree watches dir and every folder below it, calling found for each
// visited entry.
func (w *Watcher) addTree(dir string, found func(p string, isDir bool)) error {
	return afero.Walk(w.fs, dir, func(name string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		p, ok := w.itemPath(name)
		if !ok {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if found != nil {
			found(p, info.IsDir())
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.fsw.Add(name); err != nil {
			return fmt.Errorf("watch %s: %w", name, err)
		}
		w.dirs[p] = struct{}{}
		return nil
	})
}

// forget drops p and everything below it from the watched folders.
// fsnotify removes the underlying watches itself.
func (w *Watcher) forget(p string) {
	for d := range w.dirs {
		if identity.IsWithin(d, p) {
			delete(w.dirs, d)
		}
	}
}

// itemPath maps an OS path to an item path, rejecting anything outside the
// root or inside a reserved directory.
func (w *Watcher) itemPath(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	p := identity.Clean(filepath.ToSlash(rel))
	for _, seg := range strings.Split(p, "/") {
		if meta.IsReserved(seg) {
			return "", false
		}
	}
	return p, true
}

func (w *Watcher) publish(ctx context.Context, kind events.Kind, p string, isFolder bool) {
	logger.Debug("External change", logger.KeyWorkspace, w.workspace, logger.KeyEvent, kind.String(), logger.KeyPath, p)
	w.publisher.Publish(ctx, events.Event{
		Kind:      kind,
		Workspace: w.workspace,
		Path:      p,
		IsFolder:  isFolder,
		External:  true,
	})
}
