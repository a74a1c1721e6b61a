// Package tree is the virtual item tree of one workspace.
//
// Every structural operation follows the same sequence: take the path
// lock(s), resolve the target, check the ACL, check the file lock, mutate the
// filesystem and the side files, publish one event per affected item, then
// release the path lock(s). The local directory is the single source of
// truth; nothing is cached between calls.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
	"github.com/marmos91/dittovfs/pkg/vfs/lock"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
	"github.com/marmos91/dittovfs/pkg/vfs/pathlock"
)

// AuthContext carries the caller and the cancellation scope of one
// operation. A nil AuthContext is an anonymous caller with a background
// context.
type AuthContext struct {
	// Context carries cancellation signals and deadlines
	Context context.Context

	// Subject is the acting user and their groups; empty User is anonymous
	Subject acl.Subject

	// ClientAddr is the remote address, for logging only
	ClientAddr string
}

// NewAuthContext returns an AuthContext for subject.
func NewAuthContext(ctx context.Context, subject acl.Subject) *AuthContext {
	return &AuthContext{Context: ctx, Subject: subject}
}

func (a *AuthContext) context() context.Context {
	if a == nil || a.Context == nil {
		return context.Background()
	}
	return a.Context
}

func (a *AuthContext) subject() acl.Subject {
	if a == nil {
		return acl.Subject{}
	}
	return a.Subject
}

func (a *AuthContext) withContext(ctx context.Context) *AuthContext {
	c := AuthContext{}
	if a != nil {
		c = *a
	}
	c.Context = ctx
	return &c
}

// Options configures a Tree.
type Options struct {
	// Workspace is the workspace id; it must not contain ':'
	Workspace string

	// Fs is the filesystem rooted at the mount point
	Fs afero.Fs

	// Publisher receives change events; nil disables publishing
	Publisher events.Publisher

	// PathLocks serializes structural mutations; a private factory is
	// created when nil
	PathLocks *pathlock.Factory

	// LockMetrics and Metrics are optional Prometheus collectors
	LockMetrics *lock.Metrics
	Metrics     *Metrics

	// Clock overrides time.Now for lock expiry and timestamps
	Clock func() time.Time
}

// Tree is the item tree of one mounted workspace. It is safe for
// concurrent use.
type Tree struct {
	workspace string
	fs        afero.Fs
	store     *meta.Store
	locks     *lock.Manager
	paths     *pathlock.Factory
	publisher events.Publisher
	metrics   *Metrics
	now       func() time.Time
}

// New creates a Tree over opts.Fs.
func New(opts Options) (*Tree, error) {
	if err := identity.ValidateWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	if opts.Fs == nil {
		return nil, fmt.Errorf("tree %q: filesystem is required", opts.Workspace)
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	paths := opts.PathLocks
	if paths == nil {
		paths = pathlock.NewFactory()
	}

	store := meta.NewStore(opts.Fs)
	return &Tree{
		workspace: opts.Workspace,
		fs:        opts.Fs,
		store:     store,
		locks: lock.NewManager(store,
			lock.WithClock(now),
			lock.WithMetrics(opts.LockMetrics),
			lock.WithWorkspace(opts.Workspace)),
		paths:     paths,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		now:       now,
	}, nil
}

// Workspace returns the workspace id.
func (t *Tree) Workspace() string { return t.workspace }

// Locks returns the file lock manager.
func (t *Tree) Locks() *lock.Manager { return t.locks }

// PathLocks returns the path lock factory.
func (t *Tree) PathLocks() *pathlock.Factory { return t.paths }

// Store returns the side-file store.
func (t *Tree) Store() *meta.Store { return t.store }

// Capabilities reports the supported features. Versioning is not supported.
func (t *Tree) Capabilities() Capabilities {
	return Capabilities{Locking: true, ACL: true, Properties: true}
}

// ============================================================================
// Instrumentation
// ============================================================================

// begin opens the span of operation op and returns the AuthContext to use
// for the rest of the call and a completion callback taking the final error.
func (t *Tree) begin(ac *AuthContext, op string, attrs ...attribute.KeyValue) (*AuthContext, func(error)) {
	start := time.Now()
	subject := ac.subject()

	ctx := ac.context()
	ctx, span := telemetry.StartTreeSpan(ctx, t.workspace, op,
		append(attrs, telemetry.Principal(subject.User))...)
	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithOperation(op).WithWorkspace(t.workspace))
	}
	ac = ac.withContext(ctx)

	return ac, func(err error) {
		result := resultOK
		if err != nil {
			result = vfserrors.CodeOf(err).String()
			telemetry.RecordError(ctx, err)
			span.SetAttributes(telemetry.ErrorCode(result))
		}
		span.End()
		t.metrics.observe(t.workspace, op, result, time.Since(start))

		switch {
		case err == nil:
			logger.DebugCtx(ctx, "Tree operation completed",
				logger.KeyOperation, op, logger.DurationMs(start))
		case vfserrors.IsServerFault(err) || vfserrors.CodeOf(err) == 0:
			logger.WarnCtx(ctx, "Tree operation failed",
				logger.KeyOperation, op, logger.Principal(subject.User), logger.Err(err))
		default:
			logger.DebugCtx(ctx, "Tree operation rejected",
				logger.KeyOperation, op, logger.Principal(subject.User),
				logger.KeyErrorCode, result, logger.Err(err))
		}
	}
}

// ============================================================================
// Helpers
// ============================================================================

// resolve maps id to a path of this workspace. Paths through the reserved
// metadata directory never resolve.
func (t *Tree) resolve(id string) (string, error) {
	p, err := identity.IDToPath(t.workspace, id)
	if err != nil {
		return "", err
	}
	for _, seg := range strings.Split(p, "/") {
		if meta.IsReserved(seg) {
			return "", vfserrors.NewNotFoundError(p)
		}
	}
	return p, nil
}

// stat returns the entry at p, translating a missing entry to NotFound.
func (t *Tree) stat(p string) (os.FileInfo, error) {
	fi, err := t.fs.Stat(p)
	if err != nil {
		return nil, fsError(p, err)
	}
	return fi, nil
}

// statFolder returns the entry at p and fails unless it is a folder.
func (t *Tree) statFolder(p string) (os.FileInfo, error) {
	fi, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, vfserrors.NewInvalidArgumentError(p, "not a folder")
	}
	return fi, nil
}

// exists reports whether something is present at p.
func (t *Tree) exists(p string) (bool, error) {
	_, err := t.fs.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, vfserrors.NewStorageError(p, err)
	}
}

// readDir lists the visible children of folder p, sorted by name.
func (t *Tree) readDir(p string) ([]os.FileInfo, error) {
	infos, err := afero.ReadDir(t.fs, p)
	if err != nil {
		return nil, fsError(p, err)
	}
	return meta.FilterReserved(infos), nil
}

// checkAccess reads the ACL of p and fails with Forbidden unless the caller
// holds required.
func (t *Tree) checkAccess(ac *AuthContext, p string, required acl.Permission) error {
	itemACL, err := t.store.ReadACL(p)
	if err != nil {
		return err
	}
	return t.checkACL(ac, p, itemACL, required)
}

func (t *Tree) checkACL(ac *AuthContext, p string, itemACL acl.ACL, required acl.Permission) error {
	subject := ac.subject()
	d := acl.Check(itemACL, subject, required)
	if d.Allowed {
		return nil
	}
	logger.DebugCtx(ac.context(), "Access denied",
		logger.KeyPath, p,
		logger.Principal(subject.User),
		logger.KeyRequired, required.String(),
		"granted", d.Granted.String(),
		"source", d.Source.String())
	return vfserrors.NewForbiddenError(p, fmt.Sprintf("%s requires %s", subject, required))
}

// acquire takes the path locks for paths, honoring cancellation.
func (t *Tree) acquire(ac *AuthContext, paths ...string) (*pathlock.Handle, error) {
	h, err := t.paths.Acquire(ac.context(), paths...)
	if err != nil {
		return nil, fmt.Errorf("acquire path lock: %w", err)
	}
	return h, nil
}

// emit publishes one change event.
func (t *Tree) emit(ac *AuthContext, kind events.Kind, p, oldPath string, isFolder bool) {
	if t.publisher == nil {
		return
	}
	t.publisher.Publish(ac.context(), events.Event{
		Kind:      kind,
		Workspace: t.workspace,
		Path:      p,
		OldPath:   oldPath,
		IsFolder:  isFolder,
		Time:      t.now().UTC(),
	})
}

// stampCreated records the creation time of the item at p, keeping its
// other properties.
func (t *Tree) stampCreated(p string, extra map[string][]string) error {
	props, err := t.store.ReadProperties(p)
	if err != nil {
		return err
	}
	if props == nil {
		props = make(map[string][]string, 1+len(extra))
	}
	for k, v := range extra {
		props[k] = v
	}
	props[PropCreated] = []string{t.now().UTC().Format(time.RFC3339Nano)}
	return t.store.WriteProperties(p, props)
}

// validateNewName checks a single-segment item name.
func validateNewName(name string) error {
	if err := identity.ValidateName(name); err != nil {
		return err
	}
	if meta.IsReserved(name) {
		return vfserrors.NewInvalidArgumentError(name, "name is reserved")
	}
	return nil
}

// fsError maps a filesystem error on p to the error taxonomy.
func fsError(p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return vfserrors.NewNotFoundError(p)
	case errors.Is(err, fs.ErrExist):
		return vfserrors.NewAlreadyExistsError(p)
	default:
		return vfserrors.NewStorageError(p, err)
	}
}

// blockers collects the first Forbidden-class error met while a recursive
// operation skips items it may not touch.
type blockers struct {
	first error
}

// skip records err if it is Forbidden-class and reports whether it did.
// Other errors must abort the operation.
func (b *blockers) skip(err error) bool {
	if !vfserrors.IsForbidden(err) {
		return false
	}
	if b.first == nil {
		b.first = err
	}
	return true
}
