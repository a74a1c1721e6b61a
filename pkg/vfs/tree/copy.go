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

// Copy duplicates item id, with everything below it, into folder
// destParentID under the same name. Properties and ACLs are copied, locks
// are not. Requires READ on every copied item and WRITE on the destination
// folder. Unreadable descendants are skipped and Copy returns the error of
// the first one after copying the rest; the source is never modified.
func (t *Tree) Copy(ac *AuthContext, id, destParentID string) (item *Item, err error) {
	ac, done := t.begin(ac, "copy", telemetry.ItemID(id))
	defer func() { done(err) }()

	src, err := t.resolve(id)
	if err != nil {
		return nil, err
	}
	if src == "/" {
		return nil, vfserrors.NewForbiddenError(src, "the root folder cannot be copied")
	}
	destParent, err := t.resolve(destParentID)
	if err != nil {
		return nil, err
	}
	if identity.IsWithin(destParent, src) {
		return nil, vfserrors.NewForbiddenError(src, "cannot copy a folder into itself")
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
	if err := t.checkAccess(ac, src, acl.PermRead); err != nil {
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

	var b blockers
	if err := t.copyTree(ac, src, dst, fi, &b); err != nil {
		return nil, err
	}
	if b.first != nil {
		return nil, b.first
	}

	logger.DebugCtx(ac.context(), "Item copied", logger.KeyPath, dst, logger.KeyOldPath, src)
	return t.itemAt(dst)
}

// copyTree copies src onto dst, parents before children, publishing one
// Created event per copied item. The caller has checked READ on src.
func (t *Tree) copyTree(ac *AuthContext, src, dst string, fi os.FileInfo, b *blockers) error {
	if err := t.store.DeleteAll(dst); err != nil {
		return err
	}

	if fi.IsDir() {
		if err := t.fs.Mkdir(dst, 0o755); err != nil {
			return fsError(dst, err)
		}
	} else if err := t.copyContent(src, dst); err != nil {
		return err
	}
	if err := t.store.CopyAll(src, dst, false); err != nil {
		return err
	}
	if err := t.stampCreated(dst, nil); err != nil {
		return err
	}
	t.emit(ac, events.Created, dst, "", fi.IsDir())

	if !fi.IsDir() {
		return nil
	}

	children, err := t.readDir(src)
	if err != nil {
		return err
	}
	for _, child := range children {
		cs := identity.Join(src, child.Name())
		if err := t.checkAccess(ac, cs, acl.PermRead); err != nil {
			if b.skip(err) {
				continue
			}
			return err
		}
		if err := t.copyTree(ac, cs, identity.Join(dst, child.Name()), child, b); err != nil {
			return err
		}
	}
	return nil
}
