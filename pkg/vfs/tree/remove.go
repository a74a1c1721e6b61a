package tree

import (
	"os"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

// Delete removes item id and, for a folder, everything below it. Requires
// WRITE on every removed item and the lock token of every locked file.
//
// Folders are removed depth-first, publishing one Deleted event per removed
// item, children before their folder. A descendant that may not be removed
// is skipped: it and its ancestors stay in place, the rest is removed, and
// Delete returns the Forbidden-class error of the first skipped item.
func (t *Tree) Delete(ac *AuthContext, id, lockToken string) (err error) {
	ac, done := t.begin(ac, "delete", telemetry.ItemID(id))
	defer func() { done(err) }()

	p, err := t.resolve(id)
	if err != nil {
		return err
	}
	if p == "/" {
		return vfserrors.NewForbiddenError(p, "the root folder cannot be deleted")
	}

	h, err := t.acquire(ac, p)
	if err != nil {
		return err
	}
	defer h.Release()

	fi, err := t.stat(p)
	if err != nil {
		return err
	}
	if err := t.checkAccess(ac, p, acl.PermWrite); err != nil {
		return err
	}

	var b blockers
	if _, err := t.removeRecursive(ac, p, fi, lockToken, &b); err != nil {
		return err
	}
	return b.first
}

// removeRecursive removes p and reports whether it is gone. Forbidden-class
// failures below p are collected in b; any other error aborts.
func (t *Tree) removeRecursive(ac *AuthContext, p string, fi os.FileInfo, lockToken string, b *blockers) (bool, error) {
	if !fi.IsDir() {
		if err := t.locks.RequireUnlocked(p, lockToken); err != nil {
			if b.skip(err) {
				return false, nil
			}
			return false, err
		}
		if err := t.removeFile(p); err != nil {
			return false, err
		}
		logger.DebugCtx(ac.context(), "File deleted", logger.KeyPath, p)
		t.emit(ac, events.Deleted, p, "", false)
		return true, nil
	}

	children, err := t.readDir(p)
	if err != nil {
		return false, err
	}

	complete := true
	for _, child := range children {
		cp := identity.Join(p, child.Name())
		if err := t.checkAccess(ac, cp, acl.PermWrite); err != nil {
			if b.skip(err) {
				complete = false
				continue
			}
			return false, err
		}
		removed, err := t.removeRecursive(ac, cp, child, lockToken, b)
		if err != nil {
			return false, err
		}
		complete = complete && removed
	}
	if !complete {
		return false, nil
	}

	// Only the metadata directory of removed children can remain.
	if err := t.fs.RemoveAll(p); err != nil {
		return false, vfserrors.NewStorageError(p, err)
	}
	if err := t.store.DeleteAll(p); err != nil {
		return false, err
	}
	logger.DebugCtx(ac.context(), "Folder deleted", logger.KeyPath, p)
	t.emit(ac, events.Deleted, p, "", true)
	return true, nil
}

// removeFile deletes the file p, its lock and its other side files.
func (t *Tree) removeFile(p string) error {
	if err := t.fs.Remove(p); err != nil {
		return fsError(p, err)
	}
	if err := t.locks.Release(p); err != nil {
		return err
	}
	return t.store.DeleteAll(p)
}
