package search

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

func TestRebuildIndexesDisk(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fsys := afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
	require.NoError(t, fsys.MkdirAll("/projects/alpha", 0o755))
	require.NoError(t, afero.WriteFile(fsys, "/projects/alpha/budget.xlsx", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/notes.txt", []byte("y"), 0o644))

	store := meta.NewStore(fsys)
	require.NoError(t, store.WriteProperties("/notes.txt", map[string][]string{"topic": {"quarterly"}}))

	ix := newIndex(t, nil)
	// A record for a file that no longer exists
	publish(t, ix, events.Event{Kind: events.Created, Path: "/gone.txt"})

	n, err := ix.Rebuild(ctx, "ws", store)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, []string{"/projects/alpha/budget.xlsx"}, search(t, ix, "budget"))
	assert.Equal(t, []string{"/notes.txt"}, search(t, ix, "quarterly"))
	assert.Empty(t, search(t, ix, "gone"))
	assert.Empty(t, search(t, ix, "vfsmeta"))

	count, err := ix.Count(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
