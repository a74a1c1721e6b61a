package tree

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

func TestLockEnforcement(t *testing.T) {
	t.Parallel()

	ops := []struct {
		name string
		run  func(f *treeFixture, id, token string) error
	}{
		{"delete", func(f *treeFixture, id, token string) error {
			return f.tree.Delete(user("bob"), id, token)
		}},
		{"rename", func(f *treeFixture, id, token string) error {
			_, err := f.tree.Rename(user("bob"), id, "renamed.txt", "", token)
			return err
		}},
		{"move", func(f *treeFixture, id, token string) error {
			_, err := f.tree.Move(user("bob"), id, f.id("/other"), token)
			return err
		}},
		{"update_content", func(f *treeFixture, id, token string) error {
			_, err := f.tree.UpdateContent(user("bob"), id, strings.NewReader("new"), token)
			return err
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			t.Parallel()
			f := newTreeFixture(t)
			f.mkdir("/", "other")
			file := f.createFile("/", "f.txt", "hello")
			token := f.lock("/f.txt")

			err := op.run(f, file.ID, "")
			require.Error(t, err)
			assert.True(t, vfserrors.IsForbidden(err))
			assert.True(t, vfserrors.IsCode(err, vfserrors.ErrLockRequired), "got %v", err)

			err = op.run(f, file.ID, "not-the-token")
			require.Error(t, err)
			assert.True(t, vfserrors.IsCode(err, vfserrors.ErrLockMismatch), "got %v", err)

			assert.Equal(t, "hello", f.readDisk("/f.txt"))

			require.NoError(t, op.run(f, file.ID, token))
		})
	}
}

func TestLockExpiry(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "f.txt", "hello")

	_, err := f.tree.Lock(user("alice"), file.ID, time.Minute)
	require.NoError(t, err)

	item, err := f.tree.GetItem(user("alice"), file.ID)
	require.NoError(t, err)
	assert.True(t, item.Locked)
	assert.False(t, item.LockPermanent)
	assert.True(t, f.clock.Now().Add(time.Minute).Equal(item.LockExpiry), "expiry %s", item.LockExpiry)

	f.clock.Advance(2 * time.Minute)

	locked, _, err := f.tree.Locks().IsLocked("/f.txt")
	require.NoError(t, err)
	assert.False(t, locked)

	item, err = f.tree.GetItem(user("alice"), file.ID)
	require.NoError(t, err)
	assert.False(t, item.Locked)

	_, err = f.tree.UpdateContent(user("bob"), file.ID, strings.NewReader("changed"), "")
	require.NoError(t, err)
	assert.Equal(t, "changed", f.readDisk("/f.txt"))
}

func TestLockPermanentAndRelock(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "f.txt", "hello")

	token, err := f.tree.Lock(user("alice"), file.ID, 0)
	require.NoError(t, err)

	item, err := f.tree.GetItem(user("alice"), file.ID)
	require.NoError(t, err)
	assert.True(t, item.Locked)
	assert.True(t, item.LockPermanent)

	_, err = f.tree.Lock(user("bob"), file.ID, time.Minute)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrAlreadyLocked))

	f.clock.Advance(24 * 365 * time.Hour)
	_, err = f.tree.Lock(user("bob"), file.ID, time.Minute)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrAlreadyLocked), "a lock without timeout never expires")

	require.NoError(t, f.tree.Unlock(user("alice"), file.ID, token))
	_, err = f.tree.Lock(user("bob"), file.ID, time.Minute)
	require.NoError(t, err)
}

func TestUnlockErrors(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "f.txt", "hello")

	err := f.tree.Unlock(user("alice"), file.ID, "anything")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrNotLocked))

	f.lock("/f.txt")
	err = f.tree.Unlock(user("alice"), file.ID, "wrong")
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrLockMismatch))
}

func TestFoldersCannotBeLocked(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	folder := f.mkdir("/", "dir")

	_, err := f.tree.Lock(user("alice"), folder.ID, 0)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))

	_, err = f.tree.Lock(user("alice"), identity.RootID, 0)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrForbidden))
}

func TestExpiredLockIsOverwritten(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "f.txt", "hello")

	first, err := f.tree.Lock(user("alice"), file.ID, time.Second)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	second, err := f.tree.Lock(user("bob"), file.ID, time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	err = f.tree.Delete(user("alice"), file.ID, first)
	assert.True(t, vfserrors.IsCode(err, vfserrors.ErrLockMismatch))
}

func TestDeleteReleasesLock(t *testing.T) {
	t.Parallel()
	f := newTreeFixture(t)
	file := f.createFile("/", "f.txt", "x")
	token := f.lock("/f.txt")

	require.NoError(t, f.tree.Delete(user("alice"), file.ID, token))
	assert.False(t, f.onDisk("/.vfsmeta/f.txt.lock"))

	again := f.createFile("/", "f.txt", "y")
	assert.False(t, again.Locked)
	_, err := f.tree.Lock(user("bob"), again.ID, time.Minute)
	require.NoError(t, err)
}
