// Package acl implements item access-control lists and their evaluation.
//
// An ACL is an ordered list of (principal, permission set) entries. It is
// evaluated against a Subject (the acting user and their groups) in three
// steps: exact principal entries, then the special "any authenticated" or
// "anonymous" entry, then the built-in default. An empty ACL means no
// explicit restrictions.
package acl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Permission is a set of access rights.
type Permission uint32

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermUpdateACL
	PermLock

	// PermAll implies every other permission.
	PermAll Permission = 1 << 31
)

// PermNone grants nothing.
const PermNone Permission = 0

// validPerms is the union of every defined bit.
const validPerms = PermRead | PermWrite | PermUpdateACL | PermLock | PermAll

// DefaultPermissions is granted to anyone on an item whose ACL is empty.
const DefaultPermissions = PermRead | PermWrite | PermLock

var permNames = []struct {
	perm Permission
	name string
}{
	{PermRead, "READ"},
	{PermWrite, "WRITE"},
	{PermUpdateACL, "UPDATE_ACL"},
	{PermLock, "LOCK"},
	{PermAll, "ALL"},
}

// Expand returns p with PermAll replaced by every concrete permission.
func (p Permission) Expand() Permission {
	if p&PermAll != 0 {
		return validPerms
	}
	return p
}

// Has reports whether p grants every bit in required, honoring PermAll.
func (p Permission) Has(required Permission) bool {
	return p.Expand()&required.Expand() == required.Expand()
}

// Names returns the permission names in p, in a fixed order.
func (p Permission) Names() []string {
	names := make([]string, 0, len(permNames))
	for _, pn := range permNames {
		if p&pn.perm != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

func (p Permission) String() string {
	if p == PermNone {
		return "NONE"
	}
	return strings.Join(p.Names(), "|")
}

// ParsePermissions parses permission names (case-insensitive).
func ParsePermissions(names ...string) (Permission, error) {
	var p Permission
	for _, name := range names {
		upper := strings.ToUpper(strings.TrimSpace(name))
		found := false
		for _, pn := range permNames {
			if pn.name == upper {
				p |= pn.perm
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPermission, name)
		}
	}
	return p, nil
}

// MarshalJSON encodes the set as a list of names.
func (p Permission) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Names())
}

// UnmarshalJSON decodes a list of names.
func (p *Permission) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParsePermissions(names...)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PrincipalType distinguishes users, groups and the special principals.
type PrincipalType uint8

const (
	PrincipalUser PrincipalType = iota + 1
	PrincipalGroup
	PrincipalSpecial
)

func (t PrincipalType) String() string {
	switch t {
	case PrincipalUser:
		return "user"
	case PrincipalGroup:
		return "group"
	case PrincipalSpecial:
		return "special"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// MarshalText encodes the type by name.
func (t PrincipalType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *PrincipalType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "user":
		*t = PrincipalUser
	case "group":
		*t = PrincipalGroup
	case "special":
		*t = PrincipalSpecial
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPrincipalType, string(b))
	}
	return nil
}

// Special principal names.
const (
	// SpecialAuthenticated matches any caller with a user name.
	SpecialAuthenticated = "*"
	// SpecialAnonymous matches callers without a user name.
	SpecialAnonymous = "anonymous"
)

// Principal is a named identity referenced by an ACL entry.
type Principal struct {
	Name string        `json:"name"`
	Type PrincipalType `json:"type"`
}

// User returns a user principal.
func User(name string) Principal { return Principal{Name: name, Type: PrincipalUser} }

// Group returns a group principal.
func Group(name string) Principal { return Principal{Name: name, Type: PrincipalGroup} }

// AnyAuthenticated is the special principal matching every authenticated caller.
var AnyAuthenticated = Principal{Name: SpecialAuthenticated, Type: PrincipalSpecial}

// Anonymous is the special principal matching unauthenticated callers.
var Anonymous = Principal{Name: SpecialAnonymous, Type: PrincipalSpecial}

func (p Principal) String() string {
	return p.Type.String() + ":" + p.Name
}

// Entry grants Permissions to Principal.
type Entry struct {
	Principal   Principal  `json:"principal"`
	Permissions Permission `json:"permissions"`
}

// ACL is an ordered list of entries. A nil or empty ACL is unrestricted.
type ACL []Entry

// IsEmpty reports whether the ACL carries no explicit restrictions.
func (a ACL) IsEmpty() bool {
	return len(a) == 0
}

// Clone returns a copy of a.
func (a ACL) Clone() ACL {
	if a == nil {
		return nil
	}
	return append(ACL(nil), a...)
}

// Subject is the acting caller.
type Subject struct {
	User   string   `json:"user,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// Authenticated reports whether the subject carries a user name.
func (s Subject) Authenticated() bool {
	return s.User != ""
}

// InGroup reports whether the subject belongs to group.
func (s Subject) InGroup(group string) bool {
	for _, g := range s.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// String returns the user name or "anonymous".
func (s Subject) String() string {
	if !s.Authenticated() {
		return SpecialAnonymous
	}
	if len(s.Groups) == 0 {
		return s.User
	}
	groups := append([]string(nil), s.Groups...)
	sort.Strings(groups)
	return s.User + "[" + strings.Join(groups, ",") + "]"
}
