package mount

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

const waitFor = 5 * time.Second

func newWatchedMount(t *testing.T) (string, *events.Recorder, *Provider) {
	t.Helper()
	root := t.TempDir()
	bus := events.NewBus()
	rec := &events.Recorder{}
	bus.SubscribeAll(rec)

	p := newProvider(t, Options{Publisher: bus, Watch: true})
	require.NoError(t, p.Mount(root))
	return root, rec, p
}

func hasExternal(rec *events.Recorder, kind events.Kind, p string) bool {
	for _, ev := range rec.OfKind(kind) {
		if ev.External && ev.Path == p {
			return true
		}
	}
	return false
}

func TestWatcherReportsExternalChanges(t *testing.T) {
	t.Parallel()
	root, rec, _ := newWatchedMount(t)

	file := filepath.Join(root, "outside.txt")
	require.NoError(t, os.WriteFile(file, []byte("one"), 0o644))
	require.Eventually(t, func() bool {
		return hasExternal(rec, events.Created, "/outside.txt")
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(file, []byte("two"), 0o644))
	require.Eventually(t, func() bool {
		return hasExternal(rec, events.ContentUpdated, "/outside.txt")
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, os.Remove(file))
	require.Eventually(t, func() bool {
		return hasExternal(rec, events.Deleted, "/outside.txt")
	}, waitFor, 10*time.Millisecond)
}

func TestWatcherFollowsNewFolders(t *testing.T) {
	t.Parallel()
	root, rec, _ := newWatchedMount(t)

	dir := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.Eventually(t, func() bool {
		return hasExternal(rec, events.Created, "/sub")
	}, waitFor, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "inner.txt"), []byte("x"), 0o644))
	require.Eventually(t, func() bool {
		return hasExternal(rec, events.Created, "/sub/inner.txt")
	}, waitFor, 10*time.Millisecond)

	created := rec.OfKind(events.Created)
	for _, ev := range created {
		if ev.Path == "/sub" {
			assert.True(t, ev.IsFolder)
		}
	}
}

func TestWatcherIgnoresMetadataDirectory(t *testing.T) {
	t.Parallel()
	root, rec, p := newWatchedMount(t)

	tr, err := p.Tree()
	require.NoError(t, err)
	item, err := tr.CreateFolder(alice(), identity.RootID, "docs")
	require.NoError(t, err)
	_, err = tr.UpdateProperties(alice(), item.ID, map[string][]string{"k": {"v"}})
	require.NoError(t, err)

	// A later external change proves every earlier notification was handled.
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker"), nil, 0o644))
	require.Eventually(t, func() bool {
		return hasExternal(rec, events.Created, "/marker")
	}, waitFor, 10*time.Millisecond)

	for _, ev := range rec.Events() {
		assert.NotContains(t, ev.Path, ".vfsmeta")
	}
}

func TestWatcherItemPath(t *testing.T) {
	t.Parallel()
	w := &Watcher{root: filepath.FromSlash("/srv/ws")}

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"/srv/ws", "/", true},
		{"/srv/ws/a/b.txt", "/a/b.txt", true},
		{"/srv/ws/.vfsmeta/b.txt.props", "", false},
		{"/srv/ws/a/.vfsmeta", "", false},
		{"/srv/other", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.itemPath(filepath.FromSlash(tt.name))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
