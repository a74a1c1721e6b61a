package tree

import (
	"io"
	"strings"

	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
)

// UpdateContent replaces the content of file id. Requires WRITE on the file
// and, when the file is locked, the lock token.
func (t *Tree) UpdateContent(ac *AuthContext, id string, content io.Reader, lockToken string) (item *Item, err error) {
	ac, done := t.begin(ac, "update_content", telemetry.ItemID(id))
	defer func() { done(err) }()

	p, err := t.resolve(id)
	if err != nil {
		return nil, err
	}

	h, err := t.acquire(ac, p)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fi, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, vfserrors.NewInvalidArgumentError(p, "folders have no content")
	}
	return t.replaceContent(ac, p, content, "", lockToken)
}

// replaceContent overwrites the existing file p. A non-empty mediaType
// replaces the stored one. The caller holds the path lock.
func (t *Tree) replaceContent(ac *AuthContext, p string, content io.Reader, mediaType, lockToken string) (*Item, error) {
	if err := t.checkAccess(ac, p, acl.PermWrite); err != nil {
		return nil, err
	}
	if err := t.locks.RequireUnlocked(p, lockToken); err != nil {
		return nil, err
	}

	if _, err := t.writeContent(p, content); err != nil {
		return nil, err
	}
	if mediaType != "" {
		if err := t.setSystemProperty(p, PropMediaType, mediaType); err != nil {
			return nil, err
		}
	}

	t.emit(ac, events.ContentUpdated, p, "", false)
	return t.itemAt(p)
}

// UpdateProperties merges props into the property bag of id: each listed
// key is replaced by its values, and a key with no values is removed. Keys
// with the reserved "vfs:" prefix are rejected. Requires WRITE.
func (t *Tree) UpdateProperties(ac *AuthContext, id string, props map[string][]string) (item *Item, err error) {
	ac, done := t.begin(ac, "update_properties", telemetry.ItemID(id))
	defer func() { done(err) }()

	for key := range props {
		if strings.TrimSpace(key) == "" {
			return nil, vfserrors.NewInvalidArgumentError("", "property name must not be empty")
		}
		if strings.HasPrefix(key, SystemPropertyPrefix) {
			return nil, vfserrors.NewInvalidArgumentError(key, "property name is reserved")
		}
	}

	p, err := t.resolve(id)
	if err != nil {
		return nil, err
	}

	h, err := t.acquire(ac, p)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fi, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, p, acl.PermWrite); err != nil {
		return nil, err
	}

	current, err := t.store.ReadProperties(p)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = make(map[string][]string, len(props))
	}
	for key, values := range props {
		if len(values) == 0 {
			delete(current, key)
			continue
		}
		current[key] = append([]string(nil), values...)
	}
	if err := t.store.WriteProperties(p, current); err != nil {
		return nil, err
	}

	t.emit(ac, events.PropertiesUpdated, p, "", fi.IsDir())
	return t.itemAt(p)
}

// UpdateACL replaces the ACL of id. An empty ACL removes every explicit
// restriction. Requires UPDATE_ACL.
func (t *Tree) UpdateACL(ac *AuthContext, id string, entries acl.ACL) (item *Item, err error) {
	ac, done := t.begin(ac, "update_acl", telemetry.ItemID(id))
	defer func() { done(err) }()

	if err := acl.Validate(entries); err != nil {
		return nil, vfserrors.NewInvalidArgumentError("", err.Error())
	}

	p, err := t.resolve(id)
	if err != nil {
		return nil, err
	}

	h, err := t.acquire(ac, p)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	fi, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, p, acl.PermUpdateACL); err != nil {
		return nil, err
	}
	if err := t.store.WriteACL(p, entries); err != nil {
		return nil, err
	}

	t.emit(ac, events.ACLUpdated, p, "", fi.IsDir())
	return t.itemAt(p)
}

// setSystemProperty stores one reserved property of p.
func (t *Tree) setSystemProperty(p, key, value string) error {
	props, err := t.store.ReadProperties(p)
	if err != nil {
		return err
	}
	if props == nil {
		props = make(map[string][]string, 1)
	}
	props[key] = []string{value}
	return t.store.WriteProperties(p, props)
}
