package meta

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
)

type storeFixture struct {
	t     *testing.T
	root  string
	store *Store
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	root := t.TempDir()
	return &storeFixture{
		t:     t,
		root:  root,
		store: NewStore(afero.NewBasePathFs(afero.NewOsFs(), root)),
	}
}

func (f *storeFixture) touch(p string) {
	f.t.Helper()
	full := filepath.Join(f.root, filepath.FromSlash(p))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(f.t, os.WriteFile(full, []byte("x"), 0o644))
}

func (f *storeFixture) onDisk(p string) bool {
	_, err := os.Stat(filepath.Join(f.root, filepath.FromSlash(p)))
	return err == nil
}

func TestSideFilePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/docs/.vfsmeta/a.txt.props", SideFilePath("/docs/a.txt", ChannelProperties))
	assert.Equal(t, "/.vfsmeta/a.acl", SideFilePath("/a", ChannelACL))
	assert.Equal(t, "/.vfsmeta/.vfsmeta.lock", SideFilePath("/", ChannelLock))
}

func TestPropertiesRoundTrip(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/a.txt")

	props, err := f.store.ReadProperties("/a.txt")
	require.NoError(t, err)
	assert.Nil(t, props)

	want := map[string][]string{
		"author": {"alice"},
		"tags":   {"red", "green", "blue"},
	}
	require.NoError(t, f.store.WriteProperties("/a.txt", want))
	assert.True(t, f.onDisk("/.vfsmeta/a.txt.props"))

	got, err := f.store.ReadProperties("/a.txt")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, f.store.WriteProperties("/a.txt", nil))
	assert.False(t, f.onDisk("/.vfsmeta/a.txt.props"))
}

func TestACLRoundTrip(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/dir/file")

	a, err := f.store.ReadACL("/dir/file")
	require.NoError(t, err)
	assert.True(t, a.IsEmpty())

	want := acl.ACL{
		{Principal: acl.User("alice"), Permissions: acl.PermAll},
		{Principal: acl.Group("staff"), Permissions: acl.PermRead},
		{Principal: acl.AnyAuthenticated, Permissions: acl.PermRead | acl.PermLock},
	}
	require.NoError(t, f.store.WriteACL("/dir/file", want))

	got, err := f.store.ReadACL("/dir/file")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, f.store.WriteACL("/dir/file", acl.ACL{}))
	assert.False(t, f.onDisk("/dir/.vfsmeta/file.acl"))
}

func TestLockRoundTrip(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/f")

	rec, err := f.store.ReadLock("/f")
	require.NoError(t, err)
	assert.Nil(t, rec)

	expires := time.Unix(1700000000, 123).UTC()
	require.NoError(t, f.store.WriteLock("/f", LockRecord{Token: "tok", Expires: expires}))

	rec, err = f.store.ReadLock("/f")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok", rec.Token)
	assert.True(t, rec.Expires.Equal(expires))
	assert.False(t, rec.Permanent())
	assert.True(t, rec.Active(expires.Add(-time.Second)))
	assert.False(t, rec.Active(expires))

	require.NoError(t, f.store.WriteLock("/f", LockRecord{Token: "forever", Expires: NeverExpires}))
	rec, err = f.store.ReadLock("/f")
	require.NoError(t, err)
	assert.True(t, rec.Permanent())
	assert.True(t, rec.Active(time.Now().AddDate(100, 0, 0)))

	require.NoError(t, f.store.DeleteLock("/f"))
	require.NoError(t, f.store.DeleteLock("/f"))
	rec, err = f.store.ReadLock("/f")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRootSideFiles(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)

	require.NoError(t, f.store.WriteACL("/", acl.ACL{{Principal: acl.User("admin"), Permissions: acl.PermAll}}))
	a, err := f.store.ReadACL("/")
	require.NoError(t, err)
	assert.Len(t, a, 1)
}

func TestCorruptSideFiles(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/f")

	for _, ch := range Channels {
		full := filepath.Join(f.root, filepath.FromSlash(SideFilePath("/f", ch)))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte{0x01, 0x02}, 0o644))
	}

	_, err := f.store.ReadProperties("/f")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrCorruptMetadata), "properties: %v", err)
	_, err = f.store.ReadACL("/f")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrCorruptMetadata), "acl: %v", err)
	_, err = f.store.ReadLock("/f")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrCorruptMetadata), "lock: %v", err)
}

func TestChannelsAreIndependent(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/f")

	// A lock record placed in the ACL channel must not decode as an ACL.
	data, err := encodeLock(LockRecord{Token: "t", Expires: NeverExpires})
	require.NoError(t, err)
	full := filepath.Join(f.root, filepath.FromSlash(SideFilePath("/f", ChannelACL)))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))

	_, err = f.store.ReadACL("/f")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrCorruptMetadata))

	props, err := f.store.ReadProperties("/f")
	require.NoError(t, err)
	assert.Nil(t, props)
}

func TestMoveAll(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/src/a")

	require.NoError(t, f.store.WriteProperties("/src/a", map[string][]string{"k": {"v"}}))
	require.NoError(t, f.store.WriteLock("/src/a", LockRecord{Token: "t", Expires: NeverExpires}))

	require.NoError(t, f.store.MoveAll("/src/a", "/dst/b"))

	props, err := f.store.ReadProperties("/dst/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, props["k"])

	rec, err := f.store.ReadLock("/dst/b")
	require.NoError(t, err)
	require.NotNil(t, rec)

	old, err := f.store.ReadProperties("/src/a")
	require.NoError(t, err)
	assert.Nil(t, old)
	assert.False(t, f.onDisk("/src/.vfsmeta/a.lock"))
}

func TestMoveAllClearsStaleDestination(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/src/a")

	require.NoError(t, f.store.WriteProperties("/src/a", map[string][]string{"k": {"v"}}))
	require.NoError(t, f.store.WriteACL("/dst/b", acl.ACL{{Principal: acl.User("admin"), Permissions: acl.PermAll}}))
	require.NoError(t, f.store.WriteLock("/dst/b", LockRecord{Token: "stale", Expires: NeverExpires}))

	require.NoError(t, f.store.MoveAll("/src/a", "/dst/b"))

	a, err := f.store.ReadACL("/dst/b")
	require.NoError(t, err)
	assert.Empty(t, a)
	rec, err := f.store.ReadLock("/dst/b")
	require.NoError(t, err)
	assert.Nil(t, rec)
	props, err := f.store.ReadProperties("/dst/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, props["k"])
}

func TestCopyAllSkipsLockByDefault(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/a")

	require.NoError(t, f.store.WriteProperties("/a", map[string][]string{"k": {"v"}}))
	require.NoError(t, f.store.WriteACL("/a", acl.ACL{{Principal: acl.User("u"), Permissions: acl.PermRead}}))
	require.NoError(t, f.store.WriteLock("/a", LockRecord{Token: "t", Expires: NeverExpires}))

	require.NoError(t, f.store.CopyAll("/a", "/b", false))

	props, err := f.store.ReadProperties("/b")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"k": {"v"}}, props)

	a, err := f.store.ReadACL("/b")
	require.NoError(t, err)
	assert.Len(t, a, 1)

	rec, err := f.store.ReadLock("/b")
	require.NoError(t, err)
	assert.Nil(t, rec)

	src, err := f.store.ReadLock("/a")
	require.NoError(t, err)
	assert.NotNil(t, src, "source must be left untouched")
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/a")

	require.NoError(t, f.store.WriteProperties("/a", map[string][]string{"k": {"v"}}))
	require.NoError(t, f.store.WriteLock("/a", LockRecord{Token: "t", Expires: NeverExpires}))
	require.NoError(t, f.store.DeleteAll("/a"))

	for _, ch := range Channels {
		assert.False(t, f.onDisk(SideFilePath("/a", ch)), ch.String())
	}
}

func TestFilterReserved(t *testing.T) {
	t.Parallel()
	f := newStoreFixture(t)
	f.touch("/a")
	require.NoError(t, f.store.WriteProperties("/a", map[string][]string{"k": {"v"}}))

	infos, err := afero.ReadDir(f.store.Fs(), "/")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	filtered := FilterReserved(infos)
	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].Name())
}
