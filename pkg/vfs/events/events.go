// Package events is the in-process change notification bus.
//
// Delivery is synchronous: Publish calls every matching handler on the
// caller's goroutine, in subscription order, before returning. Handler
// errors and panics are logged and never reach the publisher.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind is the type of a change event.
type Kind int

const (
	Created Kind = iota + 1
	Deleted
	Moved
	Renamed
	ContentUpdated
	PropertiesUpdated
	ACLUpdated
)

// Kinds lists every event kind.
var Kinds = []Kind{Created, Deleted, Moved, Renamed, ContentUpdated, PropertiesUpdated, ACLUpdated}

func (k Kind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Deleted:
		return "DELETED"
	case Moved:
		return "MOVED"
	case Renamed:
		return "RENAMED"
	case ContentUpdated:
		return "CONTENT_UPDATED"
	case PropertiesUpdated:
		return "PROPERTIES_UPDATED"
	case ACLUpdated:
		return "ACL_UPDATED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	name := strings.ToUpper(string(b))
	for _, kind := range Kinds {
		if kind.String() == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", string(b))
}

// Event describes one change to one item.
type Event struct {
	Kind      Kind      `json:"kind"`
	Workspace string    `json:"workspace"`
	Path      string    `json:"path"`
	OldPath   string    `json:"old_path,omitempty"` // Moved and Renamed only
	IsFolder  bool      `json:"is_folder"`
	Time      time.Time `json:"time"`

	// External marks changes observed on disk rather than made through
	// the tree
	External bool `json:"external,omitempty"`
}

func (e Event) String() string {
	if e.OldPath != "" {
		return fmt.Sprintf("%s %s -> %s", e.Kind, e.OldPath, e.Path)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

// Handler receives events.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Publisher is what the tree needs from the bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}
