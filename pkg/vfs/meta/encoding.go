package meta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
)

// Side files are XDR-encoded records. Every record starts with a channel
// magic so that a file copied into the wrong channel is detected as corrupt.
//
// Channel     Suffix   Layout
// ==================================================================
// Properties  .props   magic, count, (name, count, values...)...
// ACL         .acl     magic, count, (principal, type, permissions)...
// Lock        .lock    magic, token, expiry (unix nanoseconds)
const (
	magicProperties uint32 = 0x56505031 // "VPP1"
	magicACL        uint32 = 0x56414331 // "VAC1"
	magicLock       uint32 = 0x564c4b31 // "VLK1"
)

type propertyEntry struct {
	Name   string
	Values []string
}

type propertiesRecord struct {
	Magic   uint32
	Entries []propertyEntry
}

type aclEntryRecord struct {
	Principal   string
	Type        uint32
	Permissions uint32
}

type aclRecord struct {
	Magic   uint32
	Entries []aclEntryRecord
}

type lockRecordXDR struct {
	Magic  uint32
	Token  string
	Expiry int64
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// maxSideFileSize bounds what decode accepts.
const maxSideFileSize = 4 << 20

// decode checks the channel magic before handing the record to the XDR
// decoder, so a side file from another channel is rejected without
// interpreting its length fields.
func decode(data []byte, magic uint32, v any) error {
	if len(data) < 4 {
		return fmt.Errorf("truncated record (%d bytes)", len(data))
	}
	if len(data) > maxSideFileSize {
		return fmt.Errorf("record too large (%d bytes)", len(data))
	}
	if got := binary.BigEndian.Uint32(data); got != magic {
		return fmt.Errorf("bad magic 0x%08x", got)
	}
	r := bytes.NewReader(data)
	if _, err := xdr.Unmarshal(r, v); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes", r.Len())
	}
	return nil
}

// encodeProperties writes names in sorted order so equal bags encode equally.
func encodeProperties(props map[string][]string) ([]byte, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	rec := propertiesRecord{Magic: magicProperties, Entries: make([]propertyEntry, 0, len(names))}
	for _, name := range names {
		values := props[name]
		if values == nil {
			values = []string{}
		}
		rec.Entries = append(rec.Entries, propertyEntry{Name: name, Values: values})
	}
	return encode(&rec)
}

func decodeProperties(data []byte) (map[string][]string, error) {
	var rec propertiesRecord
	if err := decode(data, magicProperties, &rec); err != nil {
		return nil, err
	}
	props := make(map[string][]string, len(rec.Entries))
	for _, e := range rec.Entries {
		if e.Name == "" {
			return nil, fmt.Errorf("empty property name")
		}
		if _, dup := props[e.Name]; dup {
			return nil, fmt.Errorf("duplicate property %q", e.Name)
		}
		props[e.Name] = e.Values
	}
	return props, nil
}

func encodeACL(a acl.ACL) ([]byte, error) {
	rec := aclRecord{Magic: magicACL, Entries: make([]aclEntryRecord, 0, len(a))}
	for _, e := range a {
		rec.Entries = append(rec.Entries, aclEntryRecord{
			Principal:   e.Principal.Name,
			Type:        uint32(e.Principal.Type),
			Permissions: uint32(e.Permissions),
		})
	}
	return encode(&rec)
}

func decodeACL(data []byte) (acl.ACL, error) {
	var rec aclRecord
	if err := decode(data, magicACL, &rec); err != nil {
		return nil, err
	}
	a := make(acl.ACL, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		if e.Type > 0xff {
			return nil, fmt.Errorf("principal type %d out of range", e.Type)
		}
		a = append(a, acl.Entry{
			Principal:   acl.Principal{Name: e.Principal, Type: acl.PrincipalType(e.Type)},
			Permissions: acl.Permission(e.Permissions),
		})
	}
	if err := acl.Validate(a); err != nil {
		return nil, err
	}
	return a, nil
}

func encodeLock(rec LockRecord) ([]byte, error) {
	return encode(&lockRecordXDR{Magic: magicLock, Token: rec.Token, Expiry: rec.expiryNanos()})
}

func decodeLock(data []byte) (*LockRecord, error) {
	var rec lockRecordXDR
	if err := decode(data, magicLock, &rec); err != nil {
		return nil, err
	}
	if rec.Token == "" {
		return nil, fmt.Errorf("empty lock token")
	}
	return lockRecordFromNanos(rec.Token, rec.Expiry), nil
}
