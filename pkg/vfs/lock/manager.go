// Package lock implements advisory exclusive file locks on top of the lock
// channel of the metadata store.
//
// A lock is identified by a random token and carries an absolute expiry.
// Expiry is lazy: an expired record stays on disk until it is overwritten,
// explicitly unlocked, or removed by Sweep, and every reader treats it as
// absent.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittovfs/internal/logger"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

// Manager grants, validates and releases file locks for one mount.
//
// Folder checks are the caller's job: the manager only sees paths.
type Manager struct {
	store     *meta.Store
	workspace string
	now       func() time.Time
	metrics   *Metrics

	// mu serializes the read-check-write sequence of Lock and Unlock.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithWorkspace sets the workspace label used in logs and metrics.
func WithWorkspace(ws string) Option {
	return func(m *Manager) { m.workspace = ws }
}

// NewManager creates a lock manager over store.
func NewManager(store *meta.Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Lock takes an exclusive lock on the file at p and returns its token.
// A timeout of zero or less never expires.
func (m *Manager) Lock(p string, timeout time.Duration) (string, error) {
	rec, err := m.Acquire(p, timeout)
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

// Acquire is Lock returning the record as stored, expiry included.
func (m *Manager) Acquire(p string, timeout time.Duration) (*meta.LockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	current, err := m.store.ReadLock(p)
	if err != nil {
		return nil, err
	}
	if current.Active(now) {
		m.metrics.ObserveAcquire(m.workspace, false)
		return nil, vfserrors.NewAlreadyLockedError(p)
	}

	expires := meta.NeverExpires
	if timeout > 0 {
		expires = now.Add(timeout)
	}
	rec := meta.LockRecord{Token: uuid.NewString(), Expires: expires}
	if err := m.store.WriteLock(p, rec); err != nil {
		return nil, err
	}

	m.metrics.ObserveAcquire(m.workspace, true)
	logger.Debug("Lock acquired",
		logger.KeyWorkspace, m.workspace,
		logger.KeyPath, p,
		logger.LockToken(rec.Token),
		logger.KeyExpiry, expires)
	return &rec, nil
}

// Unlock releases the lock on the file at p. The token must match.
func (m *Manager) Unlock(p, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.ReadLock(p)
	if err != nil {
		return err
	}
	if !current.Active(m.now()) {
		return vfserrors.NewNotLockedError(p)
	}
	if current.Token != token {
		return vfserrors.NewLockMismatchError(p)
	}
	if err := m.store.DeleteLock(p); err != nil {
		return err
	}

	m.metrics.ObserveRelease(m.workspace, ReasonExplicit)
	logger.Debug("Lock released", logger.KeyWorkspace, m.workspace, logger.KeyPath, p)
	return nil
}

// IsLocked reports whether the file at p carries an unexpired lock and
// returns the active record. Reading never modifies the record.
func (m *Manager) IsLocked(p string) (bool, *meta.LockRecord, error) {
	rec, err := m.store.ReadLock(p)
	if err != nil {
		return false, nil, err
	}
	if !rec.Active(m.now()) {
		return false, nil, nil
	}
	return true, rec, nil
}

// RequireUnlocked fails when the file at p is locked and token does not
// prove ownership: LockRequired when no token is given, LockMismatch when a
// different one is.
func (m *Manager) RequireUnlocked(p, token string) error {
	locked, rec, err := m.IsLocked(p)
	if err != nil {
		return err
	}
	if !locked {
		m.metrics.ObserveCheck(m.workspace, CheckUnlocked)
		return nil
	}
	switch token {
	case rec.Token:
		m.metrics.ObserveCheck(m.workspace, CheckOwner)
		return nil
	case "":
		m.metrics.ObserveCheck(m.workspace, CheckRejected)
		return vfserrors.NewLockRequiredError(p)
	default:
		m.metrics.ObserveCheck(m.workspace, CheckRejected)
		return vfserrors.NewLockMismatchError(p)
	}
}

// Release drops the lock record of p regardless of ownership. The tree
// calls it when the file itself is deleted; the caller has already proven
// ownership of an active lock.
func (m *Manager) Release(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// An undecodable record is removed all the same.
	current, err := m.store.ReadLock(p)
	if err != nil && !vfserrors.IsCode(err, vfserrors.ErrCorruptMetadata) {
		return err
	}
	if err := m.store.DeleteLock(p); err != nil {
		return err
	}
	if current.Active(m.now()) {
		m.metrics.ObserveRelease(m.workspace, ReasonRemoved)
	}
	return nil
}

// Sweep removes expired lock records below the mount and returns how many
// were removed. Corrupt records are logged and left in place.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	err := m.store.WalkLocks(func(itemPath string, rec *meta.LockRecord, readErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if readErr != nil {
			logger.Warn("Skipping unreadable lock record",
				logger.KeyWorkspace, m.workspace, logger.KeyPath, itemPath, logger.KeyError, readErr)
			return nil
		}
		if rec == nil || rec.Active(now) {
			return nil
		}
		if err := m.store.DeleteLock(itemPath); err != nil {
			return err
		}
		removed++
		m.metrics.ObserveRelease(m.workspace, ReasonExpired)
		return nil
	})
	if removed > 0 {
		logger.Info("Swept expired locks", logger.KeyWorkspace, m.workspace, logger.KeyCount, removed)
	}
	return removed, err
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Lock sweep failed", logger.KeyWorkspace, m.workspace, logger.KeyError, err)
			}
		}
	}
}
