package tree

import (
	"io"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

// CreateFile creates the file name in folder parentID with the bytes of
// content. An empty mediaType is detected from the content. Fails with
// ItemAlreadyExists when the name is taken. Requires WRITE on the parent.
func (t *Tree) CreateFile(ac *AuthContext, parentID, name string, content io.Reader, mediaType string) (item *Item, err error) {
	ac, done := t.begin(ac, "create_file", telemetry.ItemID(parentID), telemetry.Name(name))
	defer func() { done(err) }()

	if err := validateNewName(name); err != nil {
		return nil, err
	}
	parent, err := t.resolve(parentID)
	if err != nil {
		return nil, err
	}
	p := identity.Join(parent, name)

	h, err := t.acquire(ac, p)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if _, err := t.statFolder(parent); err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, parent, acl.PermWrite); err != nil {
		return nil, err
	}
	taken, err := t.exists(p)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, vfserrors.NewAlreadyExistsError(p)
	}

	return t.createFile(ac, p, content, mediaType)
}

// createFile writes a new file at p. The caller holds the path lock and has
// checked that p is free.
func (t *Tree) createFile(ac *AuthContext, p string, content io.Reader, mediaType string) (*Item, error) {
	// Side files left behind by out-of-band deletes must not leak into the
	// new item.
	if err := t.store.DeleteAll(p); err != nil {
		return nil, err
	}

	content, mediaType, err := detectMediaType(content, mediaType)
	if err != nil {
		return nil, vfserrors.NewStorageError(p, err)
	}
	size, err := t.writeContent(p, content)
	if err != nil {
		return nil, err
	}
	if err := t.stampCreated(p, map[string][]string{PropMediaType: {mediaType}}); err != nil {
		_ = t.fs.Remove(p)
		return nil, err
	}

	logger.DebugCtx(ac.context(), "File created",
		logger.KeyPath, p, logger.KeySize, size, logger.KeyMediaType, mediaType)
	t.emit(ac, events.Created, p, "", false)
	return t.itemAt(p)
}

// UploadFile writes name in folder parentID, replacing the content of an
// existing file. Replacing is lock-checked against lockToken and requires
// WRITE on the file; creating requires WRITE on the parent. The returned
// flag reports whether the file was created.
func (t *Tree) UploadFile(ac *AuthContext, parentID, name string, content io.Reader, mediaType, lockToken string) (item *Item, created bool, err error) {
	ac, done := t.begin(ac, "upload_file", telemetry.ItemID(parentID), telemetry.Name(name))
	defer func() { done(err) }()

	if err := validateNewName(name); err != nil {
		return nil, false, err
	}
	parent, err := t.resolve(parentID)
	if err != nil {
		return nil, false, err
	}
	p := identity.Join(parent, name)

	h, err := t.acquire(ac, p)
	if err != nil {
		return nil, false, err
	}
	defer h.Release()

	if _, err := t.statFolder(parent); err != nil {
		return nil, false, err
	}

	fi, err := t.stat(p)
	switch {
	case vfserrors.IsNotFoundError(err):
		if err := t.checkAccess(ac, parent, acl.PermWrite); err != nil {
			return nil, false, err
		}
		item, err = t.createFile(ac, p, content, mediaType)
		return item, err == nil, err
	case err != nil:
		return nil, false, err
	case fi.IsDir():
		return nil, false, vfserrors.NewAlreadyExistsError(p)
	}

	item, err = t.replaceContent(ac, p, content, mediaType, lockToken)
	return item, false, err
}

// CreateFolder creates the folder name in parentID. A multi-segment name
// such as "a/b/c" creates every missing folder on the way, publishing one
// Created event each, and reuses the folders that already exist. Fails with
// ItemAlreadyExists when the last segment exists. Requires WRITE on each
// folder that receives a new child.
func (t *Tree) CreateFolder(ac *AuthContext, parentID, name string) (item *Item, err error) {
	ac, done := t.begin(ac, "create_folder", telemetry.ItemID(parentID), telemetry.Name(name))
	defer func() { done(err) }()

	segments, err := identity.Segments(name)
	if err != nil {
		return nil, err
	}
	for _, seg := range segments {
		if err := validateNewName(seg); err != nil {
			return nil, err
		}
	}
	parent, err := t.resolve(parentID)
	if err != nil {
		return nil, err
	}

	h, err := t.acquire(ac, identity.Join(parent, segments[0]))
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if _, err := t.statFolder(parent); err != nil {
		return nil, err
	}

	cur := parent
	for i, seg := range segments {
		next := identity.Join(cur, seg)
		last := i == len(segments)-1

		fi, err := t.stat(next)
		switch {
		case err == nil && (last || !fi.IsDir()):
			return nil, vfserrors.NewAlreadyExistsError(next)
		case err == nil:
			cur = next
			continue
		case !vfserrors.IsNotFoundError(err):
			return nil, err
		}

		if err := t.checkAccess(ac, cur, acl.PermWrite); err != nil {
			return nil, err
		}
		if err := t.mkdir(ac, next); err != nil {
			return nil, err
		}
		cur = next
	}

	return t.itemAt(cur)
}

// mkdir creates the empty folder p and publishes its Created event.
func (t *Tree) mkdir(ac *AuthContext, p string) error {
	if err := t.store.DeleteAll(p); err != nil {
		return err
	}
	if err := t.fs.Mkdir(p, 0o755); err != nil {
		return fsError(p, err)
	}
	if err := t.stampCreated(p, nil); err != nil {
		return err
	}

	logger.DebugCtx(ac.context(), "Folder created", logger.KeyPath, p)
	t.emit(ac, events.Created, p, "", true)
	return nil
}

// itemAt builds the current Item at p without an ACL check.
func (t *Tree) itemAt(p string) (*Item, error) {
	fi, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	return t.buildItem(p, fi)
}
