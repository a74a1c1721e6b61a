package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

func testConfig(t *testing.T, roots map[string]string) *config.Config {
	t.Helper()

	cfg := config.GetDefaultConfig()
	disabled := false
	cfg.Server.Enabled = &disabled
	cfg.Search.InMemory = true
	cfg.Locks.SweepInterval = 0
	for id, root := range roots {
		cfg.Workspaces = append(cfg.Workspaces, config.WorkspaceConfig{ID: id, Root: root})
	}
	return cfg
}

func TestNewVFSServerMountsAndIndexes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "budget.txt"), []byte("q3"), 0644))

	srv, err := newVFSServer(context.Background(), testConfig(t, map[string]string{"docs": root}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	assert.Equal(t, []string{"docs"}, srv.registry.List())
	assert.Nil(t, srv.api)
	assert.Nil(t, srv.metrics)
	assert.Nil(t, srv.jwt)

	ctx := context.Background()
	n, err := srv.index.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	paths, err := srv.index.Search(ctx, "docs", []string{"budget"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/reports/budget.txt"}, paths)
}

func TestNewVFSServerIndexesTreeEvents(t *testing.T) {
	root := t.TempDir()

	srv, err := newVFSServer(context.Background(), testConfig(t, map[string]string{"docs": root}), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	tr, err := srv.registry.Tree("docs")
	require.NoError(t, err)

	ac := tree.NewAuthContext(context.Background(), acl.Subject{User: "alice"})
	rootItem, err := tr.GetItemByPath(ac, "/")
	require.NoError(t, err)
	_, err = tr.CreateFile(ac, rootItem.ID, "minutes.md", strings.NewReader("# minutes"), "")
	require.NoError(t, err)

	paths, err := srv.index.Search(context.Background(), "docs", []string{"minutes"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"/minutes.md"}, paths)
}

func TestNewVFSServerBadRootReleasesMounts(t *testing.T) {
	good := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing")

	cfg := testConfig(t, nil)
	cfg.Workspaces = []config.WorkspaceConfig{
		{ID: "good", Root: good},
		{ID: "bad", Root: missing},
	}

	srv, err := newVFSServer(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Contains(t, err.Error(), `workspace "bad"`)
}

func TestNewVFSServerSearchDisabled(t *testing.T) {
	cfg := testConfig(t, map[string]string{"docs": t.TempDir()})
	disabled := false
	cfg.Search.Enabled = &disabled

	srv, err := newVFSServer(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	assert.Nil(t, srv.index)
	assert.Nil(t, srv.unsubscribe)
}

func TestNewVFSServerJWT(t *testing.T) {
	cfg := testConfig(t, map[string]string{"docs": t.TempDir()})
	cfg.Auth.Secret = strings.Repeat("s", 32)

	srv, err := newVFSServer(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	require.NotNil(t, srv.jwt)
	token, _, err := srv.jwt.GenerateToken("alice", []string{"eng"}, time.Minute)
	require.NoError(t, err)
	claims, err := srv.jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestVFSServerServeWithoutServersWaitsForContext(t *testing.T) {
	srv, err := newVFSServer(context.Background(), testConfig(t, nil), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	select {
	case <-done:
		t.Fatal("Serve returned before the context was cancelled")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	require.NoError(t, srv.Shutdown())
	assert.Empty(t, srv.registry.List())
}
