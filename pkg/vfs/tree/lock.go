package tree

import (
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

// Lock takes an exclusive lock on file id and returns its token. A timeout
// of zero or less never expires. Folders cannot be locked. Requires LOCK
// or WRITE.
func (t *Tree) Lock(ac *AuthContext, id string, timeout time.Duration) (string, error) {
	rec, err := t.LockFile(ac, id, timeout)
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

// LockFile is Lock returning the stored lock record, so callers can report
// the exact expiry.
func (t *Tree) LockFile(ac *AuthContext, id string, timeout time.Duration) (rec *meta.LockRecord, err error) {
	ac, done := t.begin(ac, "lock", telemetry.ItemID(id))
	defer func() { done(err) }()

	p, err := t.lockable(id)
	if err != nil {
		return nil, err
	}

	h, err := t.acquire(ac, p)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	if err := t.checkLockTarget(ac, p); err != nil {
		return nil, err
	}
	rec, err = t.locks.Acquire(p, timeout)
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ac.context(), "File locked",
		logger.KeyPath, p, logger.Principal(ac.subject().User), logger.KeyExpiry, rec.Expires)
	return rec, nil
}

// Unlock releases the lock on file id. The token must match. Requires LOCK
// or WRITE.
func (t *Tree) Unlock(ac *AuthContext, id, lockToken string) (err error) {
	ac, done := t.begin(ac, "unlock", telemetry.ItemID(id))
	defer func() { done(err) }()

	p, err := t.lockable(id)
	if err != nil {
		return err
	}

	h, err := t.acquire(ac, p)
	if err != nil {
		return err
	}
	defer h.Release()

	if err := t.checkLockTarget(ac, p); err != nil {
		return err
	}
	if err := t.locks.Unlock(p, lockToken); err != nil {
		return err
	}

	logger.InfoCtx(ac.context(), "File unlocked", logger.KeyPath, p, logger.Principal(ac.subject().User))
	return nil
}

func (t *Tree) lockable(id string) (string, error) {
	p, err := t.resolve(id)
	if err != nil {
		return "", err
	}
	if p == "/" {
		return "", vfserrors.NewForbiddenError(p, "folders cannot be locked")
	}
	return p, nil
}

// checkLockTarget verifies that p is a file the caller may lock.
func (t *Tree) checkLockTarget(ac *AuthContext, p string) error {
	fi, err := t.stat(p)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return vfserrors.NewForbiddenError(p, "folders cannot be locked")
	}
	itemACL, err := t.store.ReadACL(p)
	if err != nil {
		return err
	}
	// WRITE implies the right to lock.
	if acl.Allowed(itemACL, ac.subject(), acl.PermWrite) {
		return nil
	}
	return t.checkACL(ac, p, itemACL, acl.PermLock)
}
