package tree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

const testWorkspace = "ws"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type treeFixture struct {
	t     *testing.T
	root  string
	tree  *Tree
	rec   *events.Recorder
	clock *fakeClock
}

// newTreeFixture mounts a tree over a fresh temp dir. Cleanup asserts that
// every path lock taken during the test was released.
func newTreeFixture(t *testing.T) *treeFixture {
	t.Helper()

	root := t.TempDir()
	bus := events.NewBus()
	rec := &events.Recorder{}
	bus.SubscribeAll(rec)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	tr, err := New(Options{
		Workspace: testWorkspace,
		Fs:        afero.NewBasePathFs(afero.NewOsFs(), root),
		Publisher: bus,
		Clock:     clock.Now,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.Zero(t, tr.PathLocks().Outstanding(), "path locks leaked: %v", tr.PathLocks().Held())
	})

	return &treeFixture{t: t, root: root, tree: tr, rec: rec, clock: clock}
}

func user(name string, groups ...string) *AuthContext {
	return NewAuthContext(context.Background(), acl.Subject{User: name, Groups: groups})
}

func anonymous() *AuthContext {
	return NewAuthContext(context.Background(), acl.Subject{})
}

func (f *treeFixture) id(p string) string {
	return identity.PathToID(testWorkspace, p)
}

func (f *treeFixture) mkdir(parent, name string) *Item {
	f.t.Helper()
	item, err := f.tree.CreateFolder(user("admin"), f.id(parent), name)
	require.NoError(f.t, err)
	return item
}

func (f *treeFixture) createFile(parent, name, content string) *Item {
	f.t.Helper()
	item, err := f.tree.CreateFile(user("admin"), f.id(parent), name, strings.NewReader(content), "")
	require.NoError(f.t, err)
	return item
}

func (f *treeFixture) lock(p string) string {
	f.t.Helper()
	token, err := f.tree.Lock(user("admin"), f.id(p), 0)
	require.NoError(f.t, err)
	return token
}

func (f *treeFixture) onDisk(p string) bool {
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(p)))
	return err == nil
}

func (f *treeFixture) readDisk(p string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(p)))
	require.NoError(f.t, err)
	return string(data)
}

func (f *treeFixture) names(parent string) []string {
	f.t.Helper()
	page, err := f.tree.ListChildren(user("admin"), f.id(parent), ListOptions{})
	require.NoError(f.t, err)
	names := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		names = append(names, item.Name)
	}
	return names
}

// paths returns "KIND path" strings for the recorded events, in order.
func (f *treeFixture) paths() []string {
	var out []string
	for _, ev := range f.rec.Events() {
		s := ev.Kind.String() + " " + ev.Path
		if ev.OldPath != "" {
			s += " <- " + ev.OldPath
		}
		out = append(out, s)
	}
	return out
}
