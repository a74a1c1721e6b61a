package apiclient

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Item is a file or folder.
type Item struct {
	ID            string              `json:"id"`
	ParentID      string              `json:"parent_id,omitempty"`
	Workspace     string              `json:"workspace"`
	Name          string              `json:"name"`
	Path          string              `json:"path"`
	Kind          string              `json:"kind"`
	Size          int64               `json:"size,omitempty"`
	MediaType     string              `json:"media_type,omitempty"`
	Locked        bool                `json:"locked,omitempty"`
	LockExpiry    time.Time           `json:"lock_expiry,omitempty"`
	LockPermanent bool                `json:"lock_permanent,omitempty"`
	Created       time.Time           `json:"created"`
	Modified      time.Time           `json:"modified"`
	Properties    map[string][]string `json:"properties,omitempty"`
	ACL           []ACLEntry          `json:"acl,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool {
	return i.Kind == "folder"
}

// Principal is the subject of an ACL entry.
type Principal struct {
	Name string `json:"name"`
	Type string `json:"type"` // "user", "group" or "special"
}

// ACLEntry grants permissions to a principal.
type ACLEntry struct {
	Principal   Principal `json:"principal"`
	Permissions []string  `json:"permissions"`
}

// Children is one page of a folder listing.
type Children struct {
	Items   []Item `json:"items"`
	HasMore bool   `json:"has_more"`
	Total   int    `json:"total"`
}

// ListOptions filters and pages a folder listing.
type ListOptions struct {
	Skip int
	Max  int

	// Type is "file", "folder" or empty for both
	Type string

	// Properties keeps children having every listed property; a non-empty
	// value must be contained in one of the property's values
	Properties map[string]string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Skip > 0 {
		q.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Max > 0 {
		q.Set("max", strconv.Itoa(o.Max))
	}
	if o.Type != "" {
		q.Set("type", o.Type)
	}
	for name, value := range o.Properties {
		q.Set("prop."+name, value)
	}
	return q
}

// GetItem returns an item by id.
func (c *Client) GetItem(ws, id string) (*Item, error) {
	return getResource[Item](c, itemPath(ws, id))
}

// GetItemByPath returns the item at p, e.g. "/reports/q3.pdf".
func (c *Client) GetItemByPath(ws, p string) (*Item, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return getResource[Item](c, workspacePath(ws, "paths")+"/")
	}
	segments := append([]string{"paths"}, strings.Split(trimmed, "/")...)
	return getResource[Item](c, workspacePath(ws, segments...))
}

// ListChildren returns one page of the children of folder id.
func (c *Client) ListChildren(ws, id string, opts ListOptions) (*Children, error) {
	return getResource[Children](c, withQuery(itemPath(ws, id, "children"), opts.query()))
}

// CreateFolder creates folder name below parentID. A name with slashes
// creates the missing intermediate folders.
func (c *Client) CreateFolder(ws, parentID, name string) (*Item, error) {
	return createResource[Item](c, itemPath(ws, parentID, "folders"), map[string]string{"name": name})
}

// CreateFile creates file name below parentID with the given content. An
// empty mediaType lets the server detect it.
func (c *Client) CreateFile(ws, parentID, name, mediaType string, content io.Reader) (*Item, error) {
	q := url.Values{"name": {name}}
	if mediaType != "" {
		q.Set("media_type", mediaType)
	}

	var item Item
	_, err := c.doRequest(request{
		method:      http.MethodPost,
		path:        withQuery(itemPath(ws, parentID, "files"), q),
		body:        content,
		contentType: "application/octet-stream",
	}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UploadFile creates file name below parentID, or overwrites it. created
// reports which happened. lockToken is required when the file is locked.
func (c *Client) UploadFile(ws, parentID, name, mediaType, lockToken string, content io.Reader) (item *Item, created bool, err error) {
	q := url.Values{}
	if mediaType != "" {
		q.Set("media_type", mediaType)
	}

	item = &Item{}
	status, err := c.doRequest(request{
		method:      http.MethodPut,
		path:        withQuery(itemPath(ws, parentID, "files", name), q),
		body:        content,
		contentType: "application/octet-stream",
		lockToken:   lockToken,
	}, item)
	if err != nil {
		return nil, false, err
	}
	return item, status == http.StatusCreated, nil
}

// Download opens the content of file id. The caller closes the reader.
func (c *Client) Download(ws, id string) (io.ReadCloser, error) {
	resp, err := c.send(request{method: http.MethodGet, path: itemPath(ws, id, "content")})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// UpdateContent replaces the content of file id.
func (c *Client) UpdateContent(ws, id, lockToken string, content io.Reader) (*Item, error) {
	var item Item
	_, err := c.doRequest(request{
		method:      http.MethodPut,
		path:        itemPath(ws, id, "content"),
		body:        content,
		contentType: "application/octet-stream",
		lockToken:   lockToken,
	}, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateProperties merges props into the properties of id; an empty list
// removes a property.
func (c *Client) UpdateProperties(ws, id string, props map[string][]string) (*Item, error) {
	return updateResource[Item](c, itemPath(ws, id, "properties"), props)
}

// UpdateACL replaces the ACL of id; an empty list restores the default.
func (c *Client) UpdateACL(ws, id string, entries []ACLEntry) (*Item, error) {
	if entries == nil {
		entries = []ACLEntry{}
	}
	return updateResource[Item](c, itemPath(ws, id, "acl"), entries)
}

// Delete removes id, recursively for folders.
func (c *Client) Delete(ws, id, lockToken string) error {
	_, err := c.doRequest(request{method: http.MethodDelete, path: itemPath(ws, id), lockToken: lockToken}, nil)
	return err
}

// Copy copies id, with everything below it, into folder destParentID.
func (c *Client) Copy(ws, id, destParentID string) (*Item, error) {
	return createResource[Item](c, itemPath(ws, id, "copy"), map[string]string{"destination": destParentID})
}

// Move moves id into folder destParentID, keeping its name.
func (c *Client) Move(ws, id, destParentID, lockToken string) (*Item, error) {
	return c.jsonWithLock(http.MethodPost, itemPath(ws, id, "move"), lockToken, map[string]string{"destination": destParentID})
}

// Rename renames id in place. A non-empty mediaType replaces the stored one.
func (c *Client) Rename(ws, id, name, mediaType, lockToken string) (*Item, error) {
	body := map[string]string{"name": name}
	if mediaType != "" {
		body["media_type"] = mediaType
	}
	return c.jsonWithLock(http.MethodPost, itemPath(ws, id, "rename"), lockToken, body)
}

func (c *Client) jsonWithLock(method, path, lockToken string, body any) (*Item, error) {
	r := request{method: method, path: path, lockToken: lockToken, contentType: "application/json"}
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	r.body = data

	var item Item
	if _, err := c.doRequest(r, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
