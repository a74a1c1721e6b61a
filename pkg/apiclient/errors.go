package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// APIError is an RFC 7807 problem returned by the server.
type APIError struct {
	StatusCode int    `json:"status"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Instance   string `json:"instance,omitempty"`

	// Code is the VFS error code, e.g. "LockRequired"; empty for plain
	// HTTP errors such as a malformed request
	Code string `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Title
	if e.Detail != "" {
		msg = e.Detail
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
}

// IsAuthError returns true if the request was not authenticated.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsNotFound returns true if the item or workspace does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if the target already exists.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsForbidden returns true if an ACL or a file lock refused the request.
func (e *APIError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsLockError returns true if the request failed because of a file lock.
func (e *APIError) IsLockError() bool {
	switch e.Code {
	case "LockRequired", "LockMismatch", "AlreadyLocked", "NotLocked":
		return true
	}
	return false
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// decodeError builds the error of a failed response. Bodies that are not a
// problem document become the detail.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{}
	if json.Unmarshal(body, apiErr) != nil || apiErr.Title == "" {
		apiErr = &APIError{Title: http.StatusText(resp.StatusCode), Detail: string(body)}
	}
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}
