package apiclient

import (
	"net/http"
	"net/url"
	"strings"
)

// call sends a JSON request and decodes the reply into a fresh T.
func call[T any](c *Client, method, path string, body any) (*T, error) {
	out := new(T)
	if err := c.do(method, path, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func getResource[T any](c *Client, path string) (*T, error) {
	return call[T](c, http.MethodGet, path, nil)
}

func createResource[T any](c *Client, path string, body any) (*T, error) {
	return call[T](c, http.MethodPost, path, body)
}

func updateResource[T any](c *Client, path string, body any) (*T, error) {
	return call[T](c, http.MethodPut, path, body)
}

func listResources[T any](c *Client, path string) ([]T, error) {
	list, err := call[[]T](c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return *list, nil
}

// workspacePath builds /api/v1/workspaces/{ws} followed by the escaped
// segments.
func workspacePath(ws string, segments ...string) string {
	var b strings.Builder
	b.WriteString("/api/v1/workspaces/")
	b.WriteString(url.PathEscape(ws))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// itemPath builds the path of an item endpoint, e.g.
// itemPath("docs", "root", "children").
func itemPath(ws, id string, segments ...string) string {
	return workspacePath(ws, append([]string{"items", id}, segments...)...)
}

// withQuery appends the non-empty query values to path.
func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
