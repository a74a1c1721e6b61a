// Package errors provides the error taxonomy shared by every VFS package.
// It is a leaf package with no internal dependencies so that identity, meta,
// acl, lock and tree can all return the same typed errors.
//
// Import graph: errors <- identity, meta, acl <- lock <- tree <- mount
package errors

import (
	goerrors "errors"
	"fmt"
)

// ErrorCode represents the kind of failure.
type ErrorCode int

const (
	// ErrNotFound indicates the identifier or path does not resolve to an item.
	ErrNotFound ErrorCode = iota + 1

	// ErrItemAlreadyExists indicates a create, rename, move or copy target collision.
	ErrItemAlreadyExists

	// ErrForbidden indicates an ACL denial or a structural invariant violation
	// (mutating the root, locking a folder, moving a folder into itself).
	ErrForbidden

	// ErrCorruptMetadata indicates a side file could not be decoded.
	ErrCorruptMetadata

	// ErrStorageIO indicates the underlying filesystem failed.
	ErrStorageIO

	// ErrInvalidIdentifier indicates a malformed item identifier.
	ErrInvalidIdentifier

	// ErrLockRequired indicates a locked file was mutated without a token.
	ErrLockRequired

	// ErrLockMismatch indicates the supplied token does not own the lock.
	ErrLockMismatch

	// ErrAlreadyLocked indicates the file already carries an active lock.
	ErrAlreadyLocked

	// ErrNotLocked indicates an unlock on a file with no active lock.
	ErrNotLocked

	// ErrInvalidArgument indicates bad caller input (names, filters, ACL entries).
	ErrInvalidArgument

	// ErrNotSupported indicates an operation the server does not offer.
	ErrNotSupported

	// ErrAlreadyMounted indicates Mount on a mounted provider.
	ErrAlreadyMounted

	// ErrNotMounted indicates use of an unmounted provider.
	ErrNotMounted
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrItemAlreadyExists:
		return "ItemAlreadyExists"
	case ErrForbidden:
		return "Forbidden"
	case ErrCorruptMetadata:
		return "CorruptMetadata"
	case ErrStorageIO:
		return "StorageIOError"
	case ErrInvalidIdentifier:
		return "InvalidIdentifier"
	case ErrLockRequired:
		return "LockRequired"
	case ErrLockMismatch:
		return "LockMismatch"
	case ErrAlreadyLocked:
		return "AlreadyLocked"
	case ErrNotLocked:
		return "NotLocked"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotSupported:
		return "NotSupported"
	case ErrAlreadyMounted:
		return "AlreadyMounted"
	case ErrNotMounted:
		return "NotMounted"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// VFSError is the error type returned by every VFS operation.
type VFSError struct {
	Code    ErrorCode
	Message string
	Path    string
	Err     error
}

// Error implements the error interface.
func (e *VFSError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *VFSError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(path string) *VFSError {
	return &VFSError{Code: ErrNotFound, Message: "item not found", Path: path}
}

// NewAlreadyExistsError creates an ItemAlreadyExists error.
func NewAlreadyExistsError(path string) *VFSError {
	return &VFSError{Code: ErrItemAlreadyExists, Message: "item already exists", Path: path}
}

// NewForbiddenError creates a Forbidden error with the given reason.
func NewForbiddenError(path, reason string) *VFSError {
	return &VFSError{Code: ErrForbidden, Message: reason, Path: path}
}

// NewCorruptMetadataError creates a CorruptMetadata error for a side file.
func NewCorruptMetadataError(path, reason string) *VFSError {
	return &VFSError{Code: ErrCorruptMetadata, Message: reason, Path: path}
}

// NewStorageError wraps a filesystem error.
func NewStorageError(path string, err error) *VFSError {
	return &VFSError{Code: ErrStorageIO, Message: "storage failure", Path: path, Err: err}
}

// NewInvalidIdentifierError creates an InvalidIdentifier error.
func NewInvalidIdentifierError(id, reason string) *VFSError {
	return &VFSError{Code: ErrInvalidIdentifier, Message: fmt.Sprintf("invalid identifier %q: %s", id, reason)}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(path, reason string) *VFSError {
	return &VFSError{Code: ErrInvalidArgument, Message: reason, Path: path}
}

// NewNotSupportedError creates a NotSupported error.
func NewNotSupportedError(operation string) *VFSError {
	return &VFSError{Code: ErrNotSupported, Message: operation + " is not supported"}
}

// NewLockRequiredError is returned when a locked file is mutated without a token.
func NewLockRequiredError(path string) *VFSError {
	return &VFSError{Code: ErrLockRequired, Message: "file is locked, lock token required", Path: path}
}

// NewLockMismatchError is returned when the supplied token does not own the lock.
func NewLockMismatchError(path string) *VFSError {
	return &VFSError{Code: ErrLockMismatch, Message: "lock token does not match", Path: path}
}

// NewAlreadyLockedError is returned when locking a file that holds an active lock.
func NewAlreadyLockedError(path string) *VFSError {
	return &VFSError{Code: ErrAlreadyLocked, Message: "file is already locked", Path: path}
}

// NewNotLockedError is returned when unlocking a file without an active lock.
func NewNotLockedError(path string) *VFSError {
	return &VFSError{Code: ErrNotLocked, Message: "file is not locked", Path: path}
}

// NewAlreadyMountedError creates an AlreadyMounted error.
func NewAlreadyMountedError(workspace string) *VFSError {
	return &VFSError{Code: ErrAlreadyMounted, Message: fmt.Sprintf("workspace %q is already mounted", workspace)}
}

// NewNotMountedError creates a NotMounted error.
func NewNotMountedError(workspace string) *VFSError {
	return &VFSError{Code: ErrNotMounted, Message: fmt.Sprintf("workspace %q is not mounted", workspace)}
}

// CodeOf returns the code of the first VFSError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var vfsErr *VFSError
	if goerrors.As(err, &vfsErr) {
		return vfsErr.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFoundError returns true if the error is a NotFound error.
func IsNotFoundError(err error) bool {
	return IsCode(err, ErrNotFound)
}

// IsAlreadyExistsError returns true if the error is an ItemAlreadyExists error.
func IsAlreadyExistsError(err error) bool {
	return IsCode(err, ErrItemAlreadyExists)
}

// IsLockError returns true for every lock protocol violation.
func IsLockError(err error) bool {
	switch CodeOf(err) {
	case ErrLockRequired, ErrLockMismatch, ErrAlreadyLocked, ErrNotLocked:
		return true
	}
	return false
}

// IsForbidden returns true for ACL denials, invariant violations and every
// lock protocol violation. The specific code is preserved in the error.
func IsForbidden(err error) bool {
	return IsCode(err, ErrForbidden) || IsLockError(err)
}

// IsServerFault returns true when the failure lies in the storage layer
// rather than in the request.
func IsServerFault(err error) bool {
	switch CodeOf(err) {
	case ErrCorruptMetadata, ErrStorageIO:
		return true
	}
	return false
}
