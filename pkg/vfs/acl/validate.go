package acl

import (
	"errors"
	"fmt"
)

// MaxEntries is the maximum number of entries per ACL.
const MaxEntries = 256

var (
	// ErrTooManyEntries is returned when an ACL exceeds MaxEntries.
	ErrTooManyEntries = errors.New("ACL exceeds maximum entry count")

	// ErrEmptyPrincipal is returned for entries without a principal name.
	ErrEmptyPrincipal = errors.New("ACL entry has empty principal name")

	// ErrInvalidPrincipalType is returned for unknown principal types.
	ErrInvalidPrincipalType = errors.New("invalid principal type")

	// ErrInvalidPermission is returned for unknown permission bits or names.
	ErrInvalidPermission = errors.New("invalid permission")

	// ErrDuplicatePrincipal is returned when a principal appears twice.
	ErrDuplicatePrincipal = errors.New("duplicate principal")
)

// Validate checks every entry of a. A nil ACL is valid.
func Validate(a ACL) error {
	if len(a) > MaxEntries {
		return fmt.Errorf("%w: %d entries (maximum %d)", ErrTooManyEntries, len(a), MaxEntries)
	}

	seen := make(map[Principal]struct{}, len(a))
	for i, e := range a {
		if err := ValidateEntry(e); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := seen[e.Principal]; dup {
			return fmt.Errorf("entry %d: %w: %s", i, ErrDuplicatePrincipal, e.Principal)
		}
		seen[e.Principal] = struct{}{}
	}
	return nil
}

// ValidateEntry checks a single entry.
func ValidateEntry(e Entry) error {
	if e.Principal.Name == "" {
		return ErrEmptyPrincipal
	}
	switch e.Principal.Type {
	case PrincipalUser, PrincipalGroup:
	case PrincipalSpecial:
		if e.Principal.Name != SpecialAuthenticated && e.Principal.Name != SpecialAnonymous {
			return fmt.Errorf("%w: unknown special principal %q", ErrInvalidPrincipalType, e.Principal.Name)
		}
	default:
		return fmt.Errorf("%w: %d", ErrInvalidPrincipalType, e.Principal.Type)
	}
	if e.Permissions&^validPerms != 0 {
		return fmt.Errorf("%w: bits 0x%x", ErrInvalidPermission, uint32(e.Permissions&^validPerms))
	}
	return nil
}
