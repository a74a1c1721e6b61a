package apiclient

import (
	"net/http"
	"time"
)

// Lock is a granted file lock.
type Lock struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LockFile locks file id. A nil timeout uses the server default; zero never
// expires.
func (c *Client) LockFile(ws, id string, timeout *time.Duration) (*Lock, error) {
	body := map[string]int64{}
	if timeout != nil {
		body["timeout_seconds"] = int64(timeout.Seconds())
	}
	return createResource[Lock](c, itemPath(ws, id, "lock"), body)
}

// UnlockFile releases the lock on file id.
func (c *Client) UnlockFile(ws, id, lockToken string) error {
	_, err := c.doRequest(request{method: http.MethodPost, path: itemPath(ws, id, "unlock"), lockToken: lockToken}, nil)
	return err
}
