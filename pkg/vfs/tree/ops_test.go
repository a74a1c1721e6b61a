package tree

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

func TestCreateFile(t *testing.T) {
	t.Parallel()

	t.Run("DetectsMediaType", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		item := f.createFile("/", "notes", "plain words")
		assert.Equal(t, "text/plain; charset=utf-8", item.MediaType)
		assert.Equal(t, KindFile, item.Kind)
		assert.Equal(t, identity.RootID, item.ParentID)
		assert.True(t, f.clock.Now().Equal(item.Created))
	})

	t.Run("KeepsGivenMediaType", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		item, err := f.tree.CreateFile(user("alice"), identity.RootID, "data.bin", strings.NewReader("{}"), "application/json")
		require.NoError(t, err)
		assert.Equal(t, "application/json", item.MediaType)
		assert.Empty(t, item.Properties, "system properties are hidden")
	})

	t.Run("RejectsExistingName", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.createFile("/", "a.txt", "first")

		_, err := f.tree.CreateFile(user("alice"), identity.RootID, "a.txt", strings.NewReader("second"), "")
		assert.True(t, vfserrors.IsAlreadyExistsError(err))
		assert.Equal(t, "first", f.readDisk("/a.txt"))
	})

	t.Run("RejectsBadNames", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		for _, name := range []string{"", ".", "..", "a/b", meta.DirName} {
			_, err := f.tree.CreateFile(user("alice"), identity.RootID, name, strings.NewReader("x"), "")
			assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument), "name %q: %v", name, err)
		}
	})

	t.Run("ParentMustBeFolder", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		file := f.createFile("/", "a.txt", "x")
		_, err := f.tree.CreateFile(user("alice"), file.ID, "b.txt", strings.NewReader("x"), "")
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))
	})

	t.Run("IgnoresStaleSideFiles", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		require.NoError(t, f.tree.Store().WriteProperties("/ghost.txt", map[string][]string{"stale": {"1"}}))

		item := f.createFile("/", "ghost.txt", "x")
		assert.Empty(t, item.Properties)
	})
}

func TestUploadFileOverwrites(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)

	item, created, err := f.tree.UploadFile(user("alice"), identity.RootID, "u.txt", strings.NewReader("v1"), "", "")
	require.NoError(t, err)
	assert.True(t, created)

	token := f.lock("/u.txt")
	_, _, err = f.tree.UploadFile(user("alice"), identity.RootID, "u.txt", strings.NewReader("v2"), "", "")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrLockRequired))

	f.rec.Reset()
	item, created, err = f.tree.UploadFile(user("alice"), identity.RootID, "u.txt", strings.NewReader("v2"), "text/x-custom", token)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "text/x-custom", item.MediaType)
	assert.Equal(t, "v2", f.readDisk("/u.txt"))
	assert.Equal(t, []string{"CONTENT_UPDATED /u.txt"}, f.paths())

	f.mkdir("/", "dir")
	_, _, err = f.tree.UploadFile(user("alice"), identity.RootID, "dir", strings.NewReader("x"), "", "")
	assert.True(t, vfserrors.IsAlreadyExistsError(err))
}

func TestListChildren(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	f.mkdir("/", "docs")
	f.createFile("/", "b.txt", "b")
	f.createFile("/", "a.txt", "a")
	f.createFile("/", "c.md", "c")

	_, err := f.tree.UpdateProperties(user("alice"), f.id("/a.txt"), map[string][]string{"tag": {"red", "blue"}})
	require.NoError(t, err)
	_, err = f.tree.UpdateProperties(user("alice"), f.id("/c.md"), map[string][]string{"tag": {"green"}})
	require.NoError(t, err)
	require.True(t, f.onDisk("/"+meta.DirName))

	assert.Equal(t, []string{"a.txt", "b.txt", "c.md", "docs"}, f.names("/"))

	t.Run("Paging", func(t *testing.T) {
		page, err := f.tree.ListChildren(user("alice"), identity.RootID, ListOptions{Skip: 1, Max: 2})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "b.txt", page.Items[0].Name)
		assert.Equal(t, "c.md", page.Items[1].Name)
		assert.True(t, page.HasMore)
		assert.Equal(t, 4, page.Total)

		page, err = f.tree.ListChildren(user("alice"), identity.RootID, ListOptions{Skip: 3, Max: 2})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.False(t, page.HasMore)
	})

	t.Run("TypeFilter", func(t *testing.T) {
		page, err := f.tree.ListChildren(user("alice"), identity.RootID, ListOptions{Type: KindFolder})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "docs", page.Items[0].Name)
	})

	t.Run("PropertyFilter", func(t *testing.T) {
		page, err := f.tree.ListChildren(user("alice"), identity.RootID, ListOptions{Properties: map[string]string{"tag": ""}})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)

		page, err = f.tree.ListChildren(user("alice"), identity.RootID, ListOptions{Properties: map[string]string{"tag": "blu"}})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "a.txt", page.Items[0].Name)
	})

	t.Run("RejectsFilesAndNegativePaging", func(t *testing.T) {
		_, err := f.tree.ListChildren(user("alice"), f.id("/a.txt"), ListOptions{})
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))

		_, err = f.tree.ListChildren(user("alice"), identity.RootID, ListOptions{Skip: -1})
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))
	})
}

func TestReservedDirectoryNeverResolves(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	f.createFile("/", "a.txt", "a")
	_, err := f.tree.UpdateProperties(user("alice"), f.id("/a.txt"), map[string][]string{"k": {"v"}})
	require.NoError(t, err)

	_, err = f.tree.GetItemByPath(user("alice"), "/"+meta.DirName)
	assert.True(t, vfserrors.IsNotFoundError(err))
	_, err = f.tree.GetItem(user("alice"), f.id("/"+meta.DirName+"/a.txt.props"))
	assert.True(t, vfserrors.IsNotFoundError(err))
}

func TestIdentifiers(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)

	root, err := f.tree.GetItem(user("alice"), identity.RootID)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.True(t, root.IsFolder())
	assert.Empty(t, root.ParentID)

	_, err = f.tree.GetItem(user("alice"), "%%%")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidIdentifier))

	_, err = f.tree.GetItem(user("alice"), identity.PathToID("other", "/a"))
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidIdentifier))

	_, err = f.tree.GetItem(user("alice"), f.id("/missing"))
	assert.True(t, vfserrors.IsNotFoundError(err))

	item := f.createFile("/", "x.txt", "x")
	byPath, err := f.tree.GetItemByPath(user("alice"), "x.txt/")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byPath.ID)
}

func TestOpenContent(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "a.txt", "hello world")

	rc, item, err := f.tree.OpenContent(user("alice"), file.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))
	assert.EqualValues(t, 11, item.Size)

	_, _, err = f.tree.OpenContent(user("alice"), identity.RootID)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))
}

func TestUpdateProperties(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "a.txt", "a")
	f.rec.Reset()

	item, err := f.tree.UpdateProperties(user("alice"), file.ID, map[string][]string{
		"author": {"alice"},
		"tags":   {"x", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"author": {"alice"}, "tags": {"x", "y"}}, item.Properties)
	assert.Equal(t, "text/plain; charset=utf-8", item.MediaType, "system properties survive")

	item, err = f.tree.UpdateProperties(user("alice"), file.ID, map[string][]string{
		"tags":   nil,
		"status": {"draft"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"author": {"alice"}, "status": {"draft"}}, item.Properties)

	assert.Equal(t, []string{"PROPERTIES_UPDATED /a.txt", "PROPERTIES_UPDATED /a.txt"}, f.paths())

	_, err = f.tree.UpdateProperties(user("alice"), file.ID, map[string][]string{PropMediaType: {"x/y"}})
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))
	_, err = f.tree.UpdateProperties(user("alice"), file.ID, map[string][]string{" ": {"x"}})
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))
}

func TestDeleteFolderRecursively(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	f.mkdir("/", "d/sub")
	f.createFile("/d", "x.txt", "x")
	f.createFile("/d/sub", "y.txt", "y")
	_, err := f.tree.UpdateProperties(user("alice"), f.id("/d"), map[string][]string{"k": {"v"}})
	require.NoError(t, err)
	f.rec.Reset()

	require.NoError(t, f.tree.Delete(user("alice"), f.id("/d"), ""))

	assert.Equal(t, []string{
		"DELETED /d/sub/y.txt",
		"DELETED /d/sub",
		"DELETED /d/x.txt",
		"DELETED /d",
	}, f.paths())
	assert.False(t, f.onDisk("/d"))
	assert.False(t, f.onDisk("/.vfsmeta/d.props"), "side files go with the item")
}

func TestDeleteFolderSkipsLockedFile(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	f.mkdir("/", "d/sub")
	f.createFile("/d", "locked.txt", "l")
	f.createFile("/d", "free.txt", "f")
	f.createFile("/d/sub", "z.txt", "z")
	token := f.lock("/d/locked.txt")
	f.rec.Reset()

	err := f.tree.Delete(user("alice"), f.id("/d"), "")
	require.Error(t, err)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrLockRequired))

	assert.Equal(t, []string{
		"DELETED /d/free.txt",
		"DELETED /d/sub/z.txt",
		"DELETED /d/sub",
	}, f.paths())
	assert.Equal(t, []string{"locked.txt"}, f.names("/d"))

	require.NoError(t, f.tree.Delete(user("alice"), f.id("/d"), token))
	assert.False(t, f.onDisk("/d"))
}

func TestCopy(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	f.mkdir("/", "src/inner")
	f.mkdir("/", "dst")
	f.createFile("/src", "a.txt", "a")
	f.createFile("/src/inner", "b.txt", "b")
	_, err := f.tree.UpdateProperties(user("alice"), f.id("/src/a.txt"), map[string][]string{"k": {"v"}})
	require.NoError(t, err)
	f.lock("/src/a.txt")
	f.rec.Reset()

	item, err := f.tree.Copy(user("bob"), f.id("/src"), f.id("/dst"))
	require.NoError(t, err)
	assert.Equal(t, "/dst/src", item.Path)

	assert.Equal(t, []string{
		"CREATED /dst/src",
		"CREATED /dst/src/a.txt",
		"CREATED /dst/src/inner",
		"CREATED /dst/src/inner/b.txt",
	}, f.paths())

	copied, err := f.tree.GetItemByPath(user("bob"), "/dst/src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"k": {"v"}}, copied.Properties)
	assert.False(t, copied.Locked, "locks are not copied")

	original, err := f.tree.GetItemByPath(user("bob"), "/src/a.txt")
	require.NoError(t, err)
	assert.True(t, original.Locked)
	assert.Equal(t, "a", f.readDisk("/src/a.txt"))

	_, err = f.tree.Copy(user("bob"), f.id("/src"), f.id("/dst"))
	assert.True(t, vfserrors.IsAlreadyExistsError(err))

	_, err = f.tree.Copy(user("bob"), f.id("/src"), f.id("/src/inner"))
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
}

func TestRename(t *testing.T) {
	t.Parallel()

	t.Run("MovesSideFiles", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "dir")
		f.createFile("/dir", "inner.txt", "i")
		_, err := f.tree.UpdateProperties(user("alice"), f.id("/dir"), map[string][]string{"k": {"dir"}})
		require.NoError(t, err)
		_, err = f.tree.UpdateProperties(user("alice"), f.id("/dir/inner.txt"), map[string][]string{"k": {"inner"}})
		require.NoError(t, err)
		f.rec.Reset()

		item, err := f.tree.Rename(user("alice"), f.id("/dir"), "renamed", "", "")
		require.NoError(t, err)
		assert.Equal(t, "/renamed", item.Path)
		assert.Equal(t, map[string][]string{"k": {"dir"}}, item.Properties)
		assert.Equal(t, []string{"RENAMED /renamed <- /dir"}, f.paths())

		inner, err := f.tree.GetItemByPath(user("alice"), "/renamed/inner.txt")
		require.NoError(t, err)
		assert.Equal(t, map[string][]string{"k": {"inner"}}, inner.Properties)

		_, err = f.tree.GetItem(user("alice"), f.id("/dir"))
		assert.True(t, vfserrors.IsNotFoundError(err))
	})

	t.Run("MediaType", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		file := f.createFile("/", "a.txt", "a")
		f.rec.Reset()

		item, err := f.tree.Rename(user("alice"), file.ID, "a.txt", "text/markdown", "")
		require.NoError(t, err)
		assert.Equal(t, "text/markdown", item.MediaType)
		assert.Equal(t, []string{"PROPERTIES_UPDATED /a.txt"}, f.paths())

		_, err = f.tree.Rename(user("alice"), file.ID, "a.txt", "", "")
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrInvalidArgument))

		item, err = f.tree.Rename(user("alice"), file.ID, "b.md", "text/x-markdown", "")
		require.NoError(t, err)
		assert.Equal(t, "text/x-markdown", item.MediaType)
	})

	t.Run("Collision", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		a := f.createFile("/", "a.txt", "a")
		f.createFile("/", "b.txt", "b")

		_, err := f.tree.Rename(user("alice"), a.ID, "b.txt", "", "")
		assert.True(t, vfserrors.IsAlreadyExistsError(err))
		assert.Equal(t, "a", f.readDisk("/a.txt"))
		assert.Equal(t, "b", f.readDisk("/b.txt"))
	})

	t.Run("IgnoresStaleSideFiles", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		file := f.createFile("/", "a.txt", "a")
		store := f.tree.Store()
		require.NoError(t, store.WriteProperties("/b.txt", map[string][]string{"stale": {"1"}}))
		require.NoError(t, store.WriteACL("/b.txt", acl.ACL{
			{Principal: acl.User("admin"), Permissions: acl.PermAll},
		}))

		item, err := f.tree.Rename(user("alice"), file.ID, "b.txt", "", "")
		require.NoError(t, err)
		assert.Empty(t, item.Properties)

		_, err = f.tree.GetItemByPath(user("bob"), "/b.txt")
		require.NoError(t, err)
	})

	t.Run("LockedDescendantBlocksFolder", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "dir")
		f.createFile("/dir", "free.txt", "f")
		f.createFile("/dir", "held.txt", "h")
		token := f.lock("/dir/held.txt")
		f.rec.Reset()

		_, err := f.tree.Rename(user("alice"), f.id("/dir"), "other", "", "")
		assert.True(t, vfserrors.IsForbidden(err))
		assert.True(t, f.onDisk("/dir/free.txt"))
		assert.False(t, f.onDisk("/other"))
		assert.Empty(t, f.rec.Events())

		_, err = f.tree.Rename(user("alice"), f.id("/dir"), "other", "", token)
		require.NoError(t, err)
		assert.True(t, f.onDisk("/other/held.txt"))

		locked, _, err := f.tree.Locks().IsLocked("/other/held.txt")
		require.NoError(t, err)
		assert.True(t, locked, "the lock follows the file")
	})
}

func TestMove(t *testing.T) {
	t.Parallel()

	t.Run("FolderAtomically", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "a/b")
		f.mkdir("/", "target")
		f.createFile("/a/b", "f.txt", "f")
		f.rec.Reset()

		item, err := f.tree.Move(user("alice"), f.id("/a"), f.id("/target"), "")
		require.NoError(t, err)
		assert.Equal(t, "/target/a", item.Path)
		assert.Equal(t, []string{"MOVED /target/a <- /a"}, f.paths())
		assert.Equal(t, "f", f.readDisk("/target/a/b/f.txt"))
	})

	t.Run("IntoItselfIsForbidden", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "a/b")

		_, err := f.tree.Move(user("alice"), f.id("/a"), f.id("/a/b"), "")
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
		_, err = f.tree.Move(user("alice"), f.id("/a"), f.id("/a"), "")
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
	})

	t.Run("Collision", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "dst")
		f.createFile("/dst", "same.txt", "old")
		src := f.createFile("/", "same.txt", "new")

		_, err := f.tree.Move(user("alice"), src.ID, f.id("/dst"), "")
		assert.True(t, vfserrors.IsAlreadyExistsError(err))
		assert.Equal(t, "old", f.readDisk("/dst/same.txt"))

		_, err = f.tree.Move(user("alice"), src.ID, identity.RootID, "")
		assert.True(t, vfserrors.IsAlreadyExistsError(err))
	})

	t.Run("IgnoresStaleSideFiles", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "src")
		f.mkdir("/", "dst")
		x := f.createFile("/src", "x", "x")
		require.NoError(t, f.tree.Store().WriteACL("/dst/x", acl.ACL{
			{Principal: acl.User("admin"), Permissions: acl.PermAll},
		}))

		_, err := f.tree.Move(user("alice"), x.ID, f.id("/dst"), "")
		require.NoError(t, err)

		item, err := f.tree.GetItemByPath(user("bob"), "/dst/x")
		require.NoError(t, err)
		assert.Empty(t, item.ACL)
	})

	t.Run("DestinationMustBeWritable", func(t *testing.T) {
		t.Parallel()
		f := newTreeFixture(t)
		f.mkdir("/", "dst")
		src := f.createFile("/", "a.txt", "a")
		_, err := f.tree.UpdateACL(user("alice"), f.id("/dst"), acl.ACL{
			{Principal: acl.User("alice"), Permissions: acl.PermAll},
		})
		require.NoError(t, err)

		_, err = f.tree.Move(user("bob"), src.ID, f.id("/dst"), "")
		assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
		assert.True(t, f.onDisk("/a.txt"))
	})
}

func TestRootIsImmutable(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	f.mkdir("/", "dir")
	ac := user("alice")

	assert.True(t, vfserrors.IsCode(f.tree.Delete(ac, identity.RootID, ""), vfserrors.ErrForbidden))

	_, err := f.tree.Rename(ac, identity.RootID, "x", "", "")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
	_, err = f.tree.Move(ac, identity.RootID, f.id("/dir"), "")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
	_, err = f.tree.Copy(ac, identity.RootID, f.id("/dir"))
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
}

func TestCapabilities(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	caps := f.tree.Capabilities()
	assert.False(t, caps.Versioning)
	assert.True(t, caps.Locking)
	assert.True(t, caps.ACL)
	assert.True(t, caps.Properties)
}
