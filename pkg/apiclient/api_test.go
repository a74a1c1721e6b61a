package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/api"
	"github.com/marmos91/dittovfs/pkg/api/auth"
	"github.com/marmos91/dittovfs/pkg/search"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/mount"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

// newTestServer serves one workspace "docs" over the real router and
// returns a client authenticated as alice.
func newTestServer(t *testing.T) *Client {
	t.Helper()

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	require.NoError(t, err)

	bus := events.NewBus()
	reg := mount.NewRegistry()
	index, err := search.Open(context.Background(), search.Config{InMemory: true, Properties: reg})
	require.NoError(t, err)
	unsubscribe := bus.SubscribeAll(index)

	p, err := mount.NewProvider(mount.Options{Workspace: "docs", Publisher: bus})
	require.NoError(t, err)
	require.NoError(t, p.Mount(t.TempDir()))
	require.NoError(t, reg.Add(p))

	srv := httptest.NewServer(api.NewRouter(api.APIConfig{}, api.Dependencies{
		Registry:           reg,
		Index:              index,
		JWT:                jwtService,
		DefaultLockTimeout: time.Minute,
	}))
	t.Cleanup(func() {
		srv.Close()
		assert.NoError(t, reg.CloseAll())
		unsubscribe()
		assert.NoError(t, index.Close())
	})

	token, _, err := jwtService.GenerateToken("alice", []string{"eng"}, 0)
	require.NoError(t, err)
	return New(srv.URL).WithToken(token)
}

func TestClientAgainstServer(t *testing.T) {
	client := newTestServer(t)

	workspaces, err := client.ListWorkspaces()
	require.NoError(t, err)
	require.Len(t, workspaces, 1)
	assert.Equal(t, Workspace{ID: "docs", Mounted: true, RootID: RootID}, workspaces[0])

	detail, err := client.GetWorkspace("docs")
	require.NoError(t, err)
	assert.True(t, detail.Capabilities.Locking)

	folder, err := client.CreateFolder("docs", RootID, "reports/2024")
	require.NoError(t, err)
	assert.Equal(t, "/reports/2024", folder.Path)

	file, err := client.CreateFile("docs", folder.ID, "q3 budget.txt", "", strings.NewReader("forty-two"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), file.Size)
	assert.False(t, file.IsFolder())

	byPath, err := client.GetItemByPath("docs", "/reports/2024/q3 budget.txt")
	require.NoError(t, err)
	assert.Equal(t, file.ID, byPath.ID)

	root, err := client.GetItemByPath("docs", "/")
	require.NoError(t, err)
	assert.Equal(t, RootID, root.ID)

	rc, err := client.Download("docs", file.ID)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "forty-two", string(content))

	_, err = client.UpdateProperties("docs", file.ID, map[string][]string{"project": {"apollo"}})
	require.NoError(t, err)

	page, err := client.ListChildren("docs", folder.ID, ListOptions{Properties: map[string]string{"project": "apollo"}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, []string{"apollo"}, page.Items[0].Properties["project"])

	result, err := client.Search("docs", []string{"budget", "apollo"}, 0)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, file.ID, result.Items[0].ID)

	renamed, err := client.Rename("docs", file.ID, "final.txt", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/reports/2024/final.txt", renamed.Path)

	copied, err := client.Copy("docs", renamed.ID, RootID)
	require.NoError(t, err)
	assert.Equal(t, "/final.txt", copied.Path)

	require.NoError(t, client.Delete("docs", folder.ID, ""))
	_, err = client.GetItem("docs", renamed.ID)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsNotFound())
}

func TestClientLocks(t *testing.T) {
	client := newTestServer(t)

	file, err := client.CreateFile("docs", RootID, "plan.md", "text/markdown", strings.NewReader("v1"))
	require.NoError(t, err)
	assert.Equal(t, "text/markdown", file.MediaType)

	lock, err := client.LockFile("docs", file.ID, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, lock.Token)
	require.NotNil(t, lock.ExpiresAt)

	_, err = client.UpdateContent("docs", file.ID, "", strings.NewReader("v2"))
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsLockError())

	item, created, err := client.UploadFile("docs", RootID, "plan.md", "", lock.Token, strings.NewReader("v2!"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(3), item.Size)

	require.NoError(t, client.UnlockFile("docs", file.ID, lock.Token))

	permanent := time.Duration(0)
	lock, err = client.LockFile("docs", file.ID, &permanent)
	require.NoError(t, err)
	assert.Nil(t, lock.ExpiresAt)

	archive, err := client.CreateFolder("docs", RootID, "archive")
	require.NoError(t, err)
	moved, err := client.Move("docs", file.ID, archive.ID, lock.Token)
	require.NoError(t, err)
	assert.Equal(t, "/archive/plan.md", moved.Path)
}

func TestClientWithoutToken(t *testing.T) {
	client := newTestServer(t).WithToken("")

	_, err := client.ListWorkspaces()
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
