package acl

// Source tells which rule produced a decision.
type Source int

const (
	// SourceDefault means the ACL was empty and the built-in default applied.
	SourceDefault Source = iota
	// SourceExact means at least one user or group entry matched the subject.
	SourceExact
	// SourceSpecial means the "any authenticated" or "anonymous" entry applied.
	SourceSpecial
	// SourceNoMatch means the ACL was non-empty and nothing matched.
	SourceNoMatch
)

func (s Source) String() string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceExact:
		return "exact"
	case SourceSpecial:
		return "special"
	default:
		return "no-match"
	}
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed  bool
	Granted  Permission
	Required Permission
	Source   Source
}

// Evaluate returns the permissions a grants to s, together with the rule
// that produced them.
//
// Resolution order:
//  1. Exact entries: the user entry matching s.User and every group entry
//     matching one of s.Groups. Their permissions are unioned.
//  2. Otherwise the first special entry for the subject: "*" for
//     authenticated callers, "anonymous" for the rest.
//  3. Otherwise: an empty ACL grants DefaultPermissions (plus UPDATE_ACL to
//     authenticated callers), a non-empty ACL grants nothing.
func Evaluate(a ACL, s Subject) (Permission, Source) {
	if a.IsEmpty() {
		if s.Authenticated() {
			return DefaultPermissions | PermUpdateACL, SourceDefault
		}
		return DefaultPermissions, SourceDefault
	}

	var (
		granted Permission
		matched bool
	)
	for _, e := range a {
		switch e.Principal.Type {
		case PrincipalUser:
			if s.Authenticated() && e.Principal.Name == s.User {
				granted |= e.Permissions
				matched = true
			}
		case PrincipalGroup:
			if s.InGroup(e.Principal.Name) {
				granted |= e.Permissions
				matched = true
			}
		}
	}
	if matched {
		return granted.Expand(), SourceExact
	}

	special := Anonymous
	if s.Authenticated() {
		special = AnyAuthenticated
	}
	for _, e := range a {
		if e.Principal == special {
			return e.Permissions.Expand(), SourceSpecial
		}
	}

	return PermNone, SourceNoMatch
}

// Check evaluates a for s and reports whether every bit of required is granted.
func Check(a ACL, s Subject, required Permission) Decision {
	granted, source := Evaluate(a, s)
	return Decision{
		Allowed:  granted.Has(required),
		Granted:  granted,
		Required: required,
		Source:   source,
	}
}

// Allowed is a shorthand for Check(a, s, required).Allowed.
func Allowed(a ACL, s Subject, required Permission) bool {
	return Check(a, s, required).Allowed
}
