package apiclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	client := New("http://localhost:8080/")
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
}

func TestWithToken(t *testing.T) {
	client := New("http://localhost:8080")
	tokenClient := client.WithToken("test-token")

	assert.Empty(t, client.token)
	assert.Equal(t, "test-token", tokenClient.token)
	assert.Equal(t, "http://localhost:8080", tokenClient.baseURL)
}

func TestSetToken(t *testing.T) {
	client := New("http://localhost:8080")
	client.SetToken("my-token")
	assert.Equal(t, "my-token", client.token)
}

func TestDoSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "/api/v1/workspaces/docs/items/root/folders", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "reports", body["name"])

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Item{ID: "abc", Name: "reports", Kind: "folder"})
	}))
	defer server.Close()

	item, err := New(server.URL).WithToken("test-token").CreateFolder("docs", RootID, "reports")
	require.NoError(t, err)
	assert.Equal(t, "abc", item.ID)
	assert.True(t, item.IsFolder())
}

func TestDoDecodesProblem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"title":"Forbidden","status":403,"detail":"/a.txt is locked","code":"LockRequired"}`))
	}))
	defer server.Close()

	err := New(server.URL).Delete("docs", "x", "")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.True(t, apiErr.IsForbidden())
	assert.True(t, apiErr.IsLockError())
	assert.False(t, apiErr.IsNotFound())
	assert.Equal(t, "LockRequired: /a.txt is locked", apiErr.Error())
}

func TestDoPlainErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL).ListWorkspaces()
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Title)
	assert.Contains(t, apiErr.Error(), "upstream down")
}

func TestListOptionsQuery(t *testing.T) {
	q := ListOptions{Skip: 2, Max: 10, Type: "file", Properties: map[string]string{"project": "apollo"}}.query()
	assert.Equal(t, "2", q.Get("skip"))
	assert.Equal(t, "10", q.Get("max"))
	assert.Equal(t, "file", q.Get("type"))
	assert.Equal(t, "apollo", q.Get("prop.project"))

	assert.Empty(t, ListOptions{}.query())
}

func TestItemPathEscapes(t *testing.T) {
	assert.Equal(t, "/api/v1/workspaces/docs/items/root/files/q3%20report.pdf",
		itemPath("docs", "root", "files", "q3 report.pdf"))
	assert.Equal(t, "/api/v1/workspaces/my%2Fws", workspacePath("my/ws"))
}
