// Package identity maps item paths to opaque identifiers and back.
//
// An identifier is base64url(workspace + ":" + path) without padding, so it is
// a pure function of the path: there is no identifier table, and moving an
// item changes its identifier. The root folder always has RootID.
package identity

import (
	"encoding/base64"
	"path"
	"strings"

	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
)

// RootID is the identifier of every workspace's root folder.
const RootID = "root"

// Separator joins the workspace id and the path before encoding.
const Separator = ":"

var encoding = base64.RawURLEncoding

// PathToID returns the identifier of path within workspace. The path is
// cleaned first, so "/a/" and "/a" yield the same identifier.
func PathToID(workspace, p string) string {
	p = Clean(p)
	if p == "/" {
		return RootID
	}
	return encoding.EncodeToString([]byte(workspace + Separator + p))
}

// IDToPath decodes id and checks that it belongs to workspace and names a
// clean absolute path inside the mount.
func IDToPath(workspace, id string) (string, error) {
	if id == RootID {
		return "/", nil
	}
	if id == "" {
		return "", vfserrors.NewInvalidIdentifierError(id, "empty identifier")
	}

	raw, err := encoding.DecodeString(id)
	if err != nil {
		return "", vfserrors.NewInvalidIdentifierError(id, "not base64url")
	}

	ws, p, ok := strings.Cut(string(raw), Separator)
	if !ok {
		return "", vfserrors.NewInvalidIdentifierError(id, "missing workspace separator")
	}
	if ws != workspace {
		return "", vfserrors.NewInvalidIdentifierError(id, "identifier belongs to another workspace")
	}
	if !strings.HasPrefix(p, "/") || Clean(p) != p || strings.ContainsRune(p, 0) {
		return "", vfserrors.NewInvalidIdentifierError(id, "path is not clean or escapes the mount")
	}
	if p == "/" {
		return "", vfserrors.NewInvalidIdentifierError(id, "the root is only addressed as "+RootID)
	}
	return p, nil
}

// ValidateWorkspace rejects workspace ids that cannot be encoded unambiguously.
func ValidateWorkspace(workspace string) error {
	if workspace == "" || strings.Contains(workspace, Separator) || strings.ContainsRune(workspace, 0) {
		return vfserrors.NewInvalidArgumentError("", "workspace id must be non-empty and must not contain ':'")
	}
	return nil
}

// Clean returns the canonical root-relative form of p: absolute, no
// trailing slash, no "." or ".." segments. The empty path is the root.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

// Join appends name to parent.
func Join(parent, name string) string {
	return path.Join(Clean(parent), name)
}

// Parent returns the parent folder path of p. The root is its own parent.
func Parent(p string) string {
	return path.Dir(Clean(p))
}

// Base returns the last segment of p, or "/" for the root.
func Base(p string) string {
	return path.Base(Clean(p))
}

// IsWithin reports whether p equals ancestor or lies below it.
func IsWithin(p, ancestor string) bool {
	p, ancestor = Clean(p), Clean(ancestor)
	if p == ancestor || ancestor == "/" {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// Rebase moves p from under oldRoot to under newRoot. p must be within oldRoot.
func Rebase(p, oldRoot, newRoot string) string {
	p, oldRoot = Clean(p), Clean(oldRoot)
	if p == oldRoot {
		return Clean(newRoot)
	}
	rel := strings.TrimPrefix(p, oldRoot)
	if oldRoot == "/" {
		rel = p
	}
	return Join(newRoot, rel)
}

// ValidateName checks that name is usable as a single path segment.
func ValidateName(name string) error {
	switch {
	case name == "":
		return vfserrors.NewInvalidArgumentError("", "name must not be empty")
	case name == "." || name == "..":
		return vfserrors.NewInvalidArgumentError(name, "name must not be '.' or '..'")
	case strings.ContainsAny(name, "/\x00"):
		return vfserrors.NewInvalidArgumentError(name, "name must be a single path segment")
	}
	return nil
}

// Segments splits a relative multi-segment name such as "a/b/c" into its
// components, validating each. Leading and trailing slashes are ignored.
func Segments(name string) ([]string, error) {
	trimmed := strings.Trim(name, "/")
	if trimmed == "" {
		return nil, vfserrors.NewInvalidArgumentError(name, "name must not be empty")
	}
	parts := strings.Split(trimmed, "/")
	for _, part := range parts {
		if err := ValidateName(part); err != nil {
			return nil, vfserrors.NewInvalidArgumentError(name, "invalid segment "+quote(part))
		}
	}
	return parts, nil
}

func quote(s string) string {
	return "'" + s + "'"
}
