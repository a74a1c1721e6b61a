// Package handlers provides HTTP handlers for the DittoVFS API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittovfs/internal/logger"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
)

// Problem represents an RFC 7807 "problem details" response.
// https://tools.ietf.org/html/rfc7807
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	// If not set, defaults to "about:blank".
	Type string `json:"type,omitempty"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`

	// Code is the VFS error code name (e.g. "LockRequired") when the
	// problem comes from a tree operation.
	Code string `json:"code,omitempty"`
}

// ContentTypeProblemJSON is the Content-Type for RFC 7807 problem responses.
const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem writes an RFC 7807 problem response.
func WriteProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &Problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(w http.ResponseWriter, problem *Problem) {
	w.Header().Set("Content-Type", ContentTypeProblemJSON)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// Common problem helper functions for standard HTTP errors.

// BadRequest writes a 400 Bad Request problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusBadRequest, "Bad Request", detail)
}

// Unauthorized writes a 401 Unauthorized problem response.
func Unauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// NotFound writes a 404 Not Found problem response.
func NotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusNotFound, "Not Found", detail)
}

// InternalServerError writes a 500 Internal Server Error problem response.
func InternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", detail)
}

// StatusOf maps an error returned by the tree, the mount registry or the
// search index to an HTTP status.
func StatusOf(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch vfserrors.CodeOf(err) {
	case vfserrors.ErrNotFound, vfserrors.ErrNotMounted:
		return http.StatusNotFound
	case vfserrors.ErrItemAlreadyExists, vfserrors.ErrAlreadyMounted:
		return http.StatusConflict
	case vfserrors.ErrForbidden, vfserrors.ErrLockRequired, vfserrors.ErrLockMismatch,
		vfserrors.ErrAlreadyLocked, vfserrors.ErrNotLocked:
		return http.StatusForbidden
	case vfserrors.ErrInvalidIdentifier, vfserrors.ErrInvalidArgument:
		return http.StatusBadRequest
	case vfserrors.ErrNotSupported:
		return http.StatusNotImplemented
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a problem response. Server faults are logged and
// their detail is not exposed to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	problem := &Problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   err.Error(),
		Instance: r.URL.Path,
	}
	if code := vfserrors.CodeOf(err); code != 0 {
		problem.Code = code.String()
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "API request failed",
			logger.KeyRequestID, chimw.GetReqID(r.Context()),
			logger.KeyMethod, r.Method,
			logger.KeyPath, r.URL.Path,
			logger.Err(err),
		)
		if status == http.StatusInternalServerError {
			problem.Detail = "internal server error"
		}
	}

	writeProblem(w, problem)
}
