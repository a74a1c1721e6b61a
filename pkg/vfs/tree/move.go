package tree

import (
	"errors"
	"os"
	"syscall"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

// Move relocates item id into folder destParentID, keeping its name.
// Requires WRITE on the item and on the destination folder, and the lock
// token of every locked file being moved.
//
// A file, or a folder with no locked file below it, is moved with one
// atomic rename and one Moved event. When a locked file blocks a folder
// move, the folder is moved item by item instead: every movable file is
// relocated (one Moved event each), destination folders are created as
// needed (Created), a source folder is removed once empty (Deleted), and the
// blocked files stay where they are. Move then returns the error of the
// first blocked file; the relocated items are not rolled back.
func (t *Tree) Move(ac *AuthContext, id, destParentID, lockToken string) (item *Item, err error) {
	ac, done := t.begin(ac, "move", telemetry.ItemID(id))
	defer func() { done(err) }()

	src, err := t.resolve(id)
	if err != nil {
		return nil, err
	}
	if src == "/" {
		return nil, vfserrors.NewForbiddenError(src, "the root folder cannot be moved")
	}
	destParent, err := t.resolve(destParentID)
	if err != nil {
		return nil, err
	}
	if identity.IsWithin(destParent, src) {
		return nil, vfserrors.NewForbiddenError(src, "cannot move a folder into itself")
	}
	dst := identity.Join(destParent, identity.Base(src))
	if dst == src {
		return nil, vfserrors.NewAlreadyExistsError(dst)
	}

	h, err := t.acquire(ac, src, dst)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fi, err := t.stat(src)
	if err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, src, acl.PermWrite); err != nil {
		return nil, err
	}
	if _, err := t.statFolder(destParent); err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, destParent, acl.PermWrite); err != nil {
		return nil, err
	}
	if err := t.requireFree(dst); err != nil {
		return nil, err
	}

	if !fi.IsDir() {
		if err := t.locks.RequireUnlocked(src, lockToken); err != nil {
			return nil, err
		}
	} else if blocker := t.lockedBelow(src, lockToken); blocker != nil {
		if !vfserrors.IsForbidden(blocker) {
			return nil, blocker
		}
		logger.DebugCtx(ac.context(), "Locked file below folder, moving item by item",
			logger.KeyPath, dst, logger.KeyOldPath, src, logger.Err(blocker))

		var b blockers
		if _, err := t.movePartial(ac, src, dst, lockToken, &b); err != nil {
			return nil, err
		}
		if b.first != nil {
			return nil, b.first
		}
		return t.itemAt(dst)
	}

	if err := t.relocate(src, dst); err != nil {
		return nil, err
	}
	logger.DebugCtx(ac.context(), "Item moved", logger.KeyPath, dst, logger.KeyOldPath, src)
	t.emit(ac, events.Moved, dst, src, fi.IsDir())
	return t.itemAt(dst)
}

// movePartial moves folder src to dst child by child, skipping locked files,
// and reports whether src is gone afterwards.
func (t *Tree) movePartial(ac *AuthContext, src, dst, lockToken string, b *blockers) (bool, error) {
	if err := t.fs.Mkdir(dst, 0o755); err != nil {
		return false, fsError(dst, err)
	}
	if err := t.store.CopyAll(src, dst, false); err != nil {
		return false, err
	}
	t.emit(ac, events.Created, dst, "", true)

	children, err := t.readDir(src)
	if err != nil {
		return false, err
	}

	complete := true
	for _, child := range children {
		cs := identity.Join(src, child.Name())
		cd := identity.Join(dst, child.Name())

		var blocker error
		if child.IsDir() {
			blocker = t.lockedBelow(cs, lockToken)
		} else {
			blocker = t.locks.RequireUnlocked(cs, lockToken)
		}

		switch {
		case blocker == nil:
			if err := t.relocate(cs, cd); err != nil {
				return false, err
			}
			t.emit(ac, events.Moved, cd, cs, child.IsDir())
		case child.IsDir() && vfserrors.IsForbidden(blocker):
			moved, err := t.movePartial(ac, cs, cd, lockToken, b)
			if err != nil {
				return false, err
			}
			complete = complete && moved
		case b.skip(blocker):
			complete = false
		default:
			return false, blocker
		}
	}
	if !complete {
		return false, nil
	}

	if err := t.fs.RemoveAll(src); err != nil {
		return false, vfserrors.NewStorageError(src, err)
	}
	if err := t.store.DeleteAll(src); err != nil {
		return false, err
	}
	t.emit(ac, events.Deleted, src, "", true)
	return true, nil
}

// Rename gives item id the name newName in its current folder. For a file,
// a non-empty newMediaType replaces the stored media type; renaming a file
// to its current name with a new media type only updates the type and
// publishes PropertiesUpdated. Requires WRITE on the item and the lock token
// of the file, or of every locked file below a folder. A folder rename
// blocked by a locked file fails without any change.
func (t *Tree) Rename(ac *AuthContext, id, newName, newMediaType, lockToken string) (item *Item, err error) {
	ac, done := t.begin(ac, "rename", telemetry.ItemID(id), telemetry.Name(newName))
	defer func() { done(err) }()

	if err := validateNewName(newName); err != nil {
		return nil, err
	}
	src, err := t.resolve(id)
	if err != nil {
		return nil, err
	}
	if src == "/" {
		return nil, vfserrors.NewForbiddenError(src, "the root folder cannot be renamed")
	}
	dst := identity.Join(identity.Parent(src), newName)

	h, err := t.acquire(ac, src, dst)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fi, err := t.stat(src)
	if err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, src, acl.PermWrite); err != nil {
		return nil, err
	}
	if newMediaType != "" && fi.IsDir() {
		return nil, vfserrors.NewInvalidArgumentError(src, "folders have no media type")
	}

	if fi.IsDir() {
		err = t.lockedBelow(src, lockToken)
	} else {
		err = t.locks.RequireUnlocked(src, lockToken)
	}
	if err != nil {
		return nil, err
	}

	if dst == src {
		if newMediaType == "" {
			return nil, vfserrors.NewInvalidArgumentError(src, "new name equals the current name")
		}
		if err := t.setSystemProperty(src, PropMediaType, newMediaType); err != nil {
			return nil, err
		}
		t.emit(ac, events.PropertiesUpdated, src, "", false)
		return t.itemAt(src)
	}

	if err := t.requireFree(dst); err != nil {
		return nil, err
	}
	if err := t.relocate(src, dst); err != nil {
		return nil, err
	}
	if newMediaType != "" {
		if err := t.setSystemProperty(dst, PropMediaType, newMediaType); err != nil {
			return nil, err
		}
	}

	logger.DebugCtx(ac.context(), "Item renamed", logger.KeyPath, dst, logger.KeyOldPath, src)
	t.emit(ac, events.Renamed, dst, src, fi.IsDir())
	return t.itemAt(dst)
}

// lockedBelow returns the lock error of the first file below folder p that
// lockToken does not unlock, or nil when nothing blocks.
func (t *Tree) lockedBelow(p, lockToken string) error {
	children, err := t.readDir(p)
	if err != nil {
		return err
	}
	for _, child := range children {
		cp := identity.Join(p, child.Name())
		if child.IsDir() {
			err = t.lockedBelow(cp, lockToken)
		} else {
			err = t.locks.RequireUnlocked(cp, lockToken)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// requireFree fails with ItemAlreadyExists when p is taken.
func (t *Tree) requireFree(p string) error {
	taken, err := t.exists(p)
	if err != nil {
		return err
	}
	if taken {
		return vfserrors.NewAlreadyExistsError(p)
	}
	return nil
}

// relocate moves the item at src, side files included, to dst. Across
// devices it falls back to copying and then removing the source; a failed
// copy leaves the source untouched.
func (t *Tree) relocate(src, dst string) error {
	if err := t.fs.Rename(src, dst); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return fsError(src, err)
		}
		return t.copyThenRemove(src, dst)
	}
	if err := t.store.MoveAll(src, dst); err != nil {
		if rbErr := t.fs.Rename(dst, src); rbErr != nil {
			logger.Error("Failed to roll back rename after side-file move failure",
				logger.KeyPath, dst, logger.KeyOldPath, src, logger.Err(rbErr))
		}
		return err
	}
	return nil
}

func (t *Tree) copyThenRemove(src, dst string) error {
	fi, err := t.stat(src)
	if err != nil {
		return err
	}
	if err := t.copyRaw(src, dst, fi); err != nil {
		return err
	}
	if err := t.fs.RemoveAll(src); err != nil {
		return vfserrors.NewStorageError(src, err)
	}
	return t.store.DeleteAll(src)
}

// copyRaw duplicates src onto dst with every side file, lock included,
// without checks or events.
func (t *Tree) copyRaw(src, dst string, fi os.FileInfo) error {
	if !fi.IsDir() {
		if err := t.copyContent(src, dst); err != nil {
			return err
		}
		return t.store.CopyAll(src, dst, true)
	}

	if err := t.fs.Mkdir(dst, fi.Mode().Perm()|0o700); err != nil {
		return fsError(dst, err)
	}
	if err := t.store.CopyAll(src, dst, true); err != nil {
		return err
	}
	children, err := t.readDir(src)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := t.copyRaw(identity.Join(src, child.Name()), identity.Join(dst, child.Name()), child); err != nil {
			return err
		}
	}
	return nil
}
