package tree

import (
	"fmt"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

// Kind discriminates files from folders.
type Kind int

const (
	KindFile Kind = iota + 1
	KindFolder
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes "file" or "folder".
func (k *Kind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseKind parses a kind name. The empty string yields 0, meaning any kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, nil
	case "file", "files":
		return KindFile, nil
	case "folder", "folders", "dir", "directory":
		return KindFolder, nil
	}
	return 0, fmt.Errorf("unknown item kind %q", s)
}

// Reserved property names. They are stored with the user's properties but
// never exposed in Item.Properties and cannot be set by callers.
const (
	SystemPropertyPrefix = "vfs:"
	PropMediaType        = SystemPropertyPrefix + "mediaType"
	PropCreated          = SystemPropertyPrefix + "created"
)

// DefaultMediaType is reported for files whose type is unknown.
const DefaultMediaType = "application/octet-stream"

// Item is a File or a Folder of the tree, as observed at the time of the call.
type Item struct {
	ID        string `json:"id"`
	ParentID  string `json:"parent_id,omitempty"`
	Workspace string `json:"workspace"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Kind      Kind   `json:"kind"`

	// File only
	Size          int64     `json:"size,omitempty"`
	MediaType     string    `json:"media_type,omitempty"`
	Locked        bool      `json:"locked,omitempty"`
	LockExpiry    time.Time `json:"lock_expiry,omitempty"`
	LockPermanent bool      `json:"lock_permanent,omitempty"`

	Created    time.Time           `json:"created"`
	Modified   time.Time           `json:"modified"`
	Properties map[string][]string `json:"properties,omitempty"`
	ACL        acl.ACL             `json:"acl,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i *Item) IsFolder() bool {
	return i.Kind == KindFolder
}

// IsRoot reports whether the item is the workspace root.
func (i *Item) IsRoot() bool {
	return i.Path == "/"
}

// Capabilities describes what the tree supports.
type Capabilities struct {
	Versioning bool `json:"versioning"`
	Locking    bool `json:"locking"`
	ACL        bool `json:"acl"`
	Properties bool `json:"properties"`
}

// buildItem assembles the Item at p from its directory entry and side files.
func (t *Tree) buildItem(p string, fi os.FileInfo) (*Item, error) {
	props, err := t.store.ReadProperties(p)
	if err != nil {
		return nil, err
	}
	itemACL, err := t.store.ReadACL(p)
	if err != nil {
		return nil, err
	}

	item := &Item{
		ID:         identity.PathToID(t.workspace, p),
		Workspace:  t.workspace,
		Path:       p,
		Modified:   fi.ModTime().UTC(),
		Properties: userProperties(props),
		ACL:        itemACL,
	}
	item.Created = createdTime(props, item.Modified)
	if p != "/" {
		item.Name = identity.Base(p)
		item.ParentID = identity.PathToID(t.workspace, identity.Parent(p))
	}

	if fi.IsDir() {
		item.Kind = KindFolder
		return item, nil
	}

	item.Kind = KindFile
	item.Size = fi.Size()
	item.MediaType = mediaTypeOf(p, props)

	locked, rec, err := t.locks.IsLocked(p)
	if err != nil {
		return nil, err
	}
	if locked {
		item.Locked = true
		if rec.Permanent() {
			item.LockPermanent = true
		} else {
			item.LockExpiry = rec.Expires
		}
	}
	return item, nil
}

// userProperties drops reserved keys. It returns nil for an empty bag.
func userProperties(props map[string][]string) map[string][]string {
	var out map[string][]string
	for k, v := range props {
		if strings.HasPrefix(k, SystemPropertyPrefix) {
			continue
		}
		if out == nil {
			out = make(map[string][]string, len(props))
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}

func createdTime(props map[string][]string, fallback time.Time) time.Time {
	if v := props[PropCreated]; len(v) > 0 {
		if ts, err := time.Parse(time.RFC3339Nano, v[0]); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}

// mediaTypeOf returns the stored media type, else a guess from the
// extension, else DefaultMediaType.
func mediaTypeOf(p string, props map[string][]string) string {
	if v := props[PropMediaType]; len(v) > 0 && v[0] != "" {
		return v[0]
	}
	if byExt := mime.TypeByExtension(path.Ext(p)); byExt != "" {
		return byExt
	}
	return DefaultMediaType
}

// matches reports whether item passes the listing filters.
func (o ListOptions) matches(item *Item) bool {
	if o.Type != 0 && item.Kind != o.Type {
		return false
	}
	for key, want := range o.Properties {
		values, ok := item.Properties[key]
		if !ok {
			return false
		}
		if want == "" {
			continue
		}
		found := false
		for _, v := range values {
			if strings.Contains(v, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
