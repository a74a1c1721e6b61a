// Package meta stores per-item metadata in side files.
//
// Every folder may contain a reserved directory (DirName) holding up to three
// side files per child item, one per channel: properties, ACL and lock. The
// side files of the mount root live in the root's own reserved directory
// under the reserved name itself, which can never collide with an item name.
//
// The store never caches: every read goes to the filesystem.
package meta

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
)

// DirName is the reserved directory holding side files. Listings filter it
// unconditionally and items may not take this name.
const DirName = ".vfsmeta"

// Channel identifies one of the three independent metadata channels.
type Channel int

const (
	ChannelProperties Channel = iota
	ChannelACL
	ChannelLock
)

// Channels lists every channel, in a fixed order.
var Channels = []Channel{ChannelProperties, ChannelACL, ChannelLock}

// Suffix returns the side-file suffix of the channel.
func (c Channel) Suffix() string {
	switch c {
	case ChannelProperties:
		return ".props"
	case ChannelACL:
		return ".acl"
	case ChannelLock:
		return ".lock"
	default:
		return fmt.Sprintf(".ch%d", int(c))
	}
}

func (c Channel) String() string {
	switch c {
	case ChannelProperties:
		return "properties"
	case ChannelACL:
		return "acl"
	case ChannelLock:
		return "lock"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// IsReserved reports whether name is the reserved metadata directory.
func IsReserved(name string) bool {
	return name == DirName
}

// SideFilePath returns the side-file location for the item at p.
func SideFilePath(p string, ch Channel) string {
	p = path.Clean("/" + p)
	if p == "/" {
		return path.Join("/", DirName, DirName+ch.Suffix())
	}
	return path.Join(path.Dir(p), DirName, path.Base(p)+ch.Suffix())
}

// Store reads and writes side files on an afero filesystem rooted at the
// mount point.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store over fsys.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// ReadProperties returns the property bag of the item at p, or nil when the
// item has none.
func (s *Store) ReadProperties(p string) (map[string][]string, error) {
	data, err := s.read(p, ChannelProperties)
	if err != nil || data == nil {
		return nil, err
	}
	props, err := decodeProperties(data)
	if err != nil {
		return nil, vfserrors.NewCorruptMetadataError(SideFilePath(p, ChannelProperties), err.Error())
	}
	return props, nil
}

// WriteProperties replaces the property bag of the item at p. An empty bag
// removes the side file.
func (s *Store) WriteProperties(p string, props map[string][]string) error {
	if len(props) == 0 {
		return s.remove(p, ChannelProperties)
	}
	data, err := encodeProperties(props)
	if err != nil {
		return vfserrors.NewStorageError(p, err)
	}
	return s.write(p, ChannelProperties, data)
}

// ReadACL returns the ACL of the item at p. A missing side file is an empty
// ACL, not an error.
func (s *Store) ReadACL(p string) (acl.ACL, error) {
	data, err := s.read(p, ChannelACL)
	if err != nil || data == nil {
		return nil, err
	}
	a, err := decodeACL(data)
	if err != nil {
		return nil, vfserrors.NewCorruptMetadataError(SideFilePath(p, ChannelACL), err.Error())
	}
	return a, nil
}

// WriteACL replaces the ACL of the item at p. An empty ACL removes the side
// file, restoring the unrestricted default.
func (s *Store) WriteACL(p string, a acl.ACL) error {
	if a.IsEmpty() {
		return s.remove(p, ChannelACL)
	}
	data, err := encodeACL(a)
	if err != nil {
		return vfserrors.NewStorageError(p, err)
	}
	return s.write(p, ChannelACL, data)
}

// ReadLock returns the raw lock record of the item at p, or nil. Expired
// records are returned as stored; callers decide with LockRecord.Active.
func (s *Store) ReadLock(p string) (*LockRecord, error) {
	data, err := s.read(p, ChannelLock)
	if err != nil || data == nil {
		return nil, err
	}
	rec, err := decodeLock(data)
	if err != nil {
		return nil, vfserrors.NewCorruptMetadataError(SideFilePath(p, ChannelLock), err.Error())
	}
	return rec, nil
}

// WriteLock stores rec for the item at p, replacing any previous record.
func (s *Store) WriteLock(p string, rec LockRecord) error {
	data, err := encodeLock(rec)
	if err != nil {
		return vfserrors.NewStorageError(p, err)
	}
	return s.write(p, ChannelLock, data)
}

// DeleteLock removes the lock record of the item at p, if any.
func (s *Store) DeleteLock(p string) error {
	return s.remove(p, ChannelLock)
}

// DeleteAll removes every side file of the item at p.
func (s *Store) DeleteAll(p string) error {
	for _, ch := range Channels {
		if err := s.remove(p, ch); err != nil {
			return err
		}
	}
	return nil
}

// MoveAll relocates every side file of the item at oldPath so it resolves
// under newPath. A channel absent at oldPath is cleared at newPath, so
// records left behind by a former item never attach to the moved one.
// Side files of a folder's descendants travel with the folder itself and
// need no handling here.
func (s *Store) MoveAll(oldPath, newPath string) error {
	for _, ch := range Channels {
		src := SideFilePath(oldPath, ch)
		if !s.exists(src) {
			if err := s.remove(newPath, ch); err != nil {
				return err
			}
			continue
		}
		dst := SideFilePath(newPath, ch)
		if err := s.fs.MkdirAll(path.Dir(dst), 0o755); err != nil {
			return vfserrors.NewStorageError(dst, err)
		}
		if err := s.fs.Rename(src, dst); err != nil {
			return vfserrors.NewStorageError(src, err)
		}
	}
	return nil
}

// CopyAll duplicates the side files of the item at srcPath onto dstPath.
// The lock channel is copied only when withLock is set.
func (s *Store) CopyAll(srcPath, dstPath string, withLock bool) error {
	for _, ch := range Channels {
		if ch == ChannelLock && !withLock {
			continue
		}
		data, err := s.read(srcPath, ch)
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		if err := s.write(dstPath, ch, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) read(p string, ch Channel) ([]byte, error) {
	sp := SideFilePath(p, ch)
	data, err := afero.ReadFile(s.fs, sp)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, vfserrors.NewStorageError(sp, err)
	}
	return data, nil
}

// write replaces the side file through a temporary file and a rename, so
// readers never observe a partially written record.
func (s *Store) write(p string, ch Channel, data []byte) error {
	sp := SideFilePath(p, ch)
	dir := path.Dir(sp)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return vfserrors.NewStorageError(dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return vfserrors.NewStorageError(sp, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return vfserrors.NewStorageError(sp, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return vfserrors.NewStorageError(sp, err)
	}
	if err := s.fs.Rename(tmpName, sp); err != nil {
		_ = s.fs.Remove(tmpName)
		return vfserrors.NewStorageError(sp, err)
	}
	return nil
}

func (s *Store) remove(p string, ch Channel) error {
	sp := SideFilePath(p, ch)
	if err := s.fs.Remove(sp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return vfserrors.NewStorageError(sp, err)
	}
	return nil
}

func (s *Store) exists(p string) bool {
	_, err := s.fs.Stat(p)
	return err == nil
}

// WalkLocks calls fn for every lock record found under the mount, with the
// path of the item it belongs to. Undecodable records are reported through
// fn with a nil record and a CorruptMetadata error.
func (s *Store) WalkLocks(fn func(itemPath string, rec *LockRecord, err error) error) error {
	suffix := ChannelLock.Suffix()
	return afero.Walk(s.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return vfserrors.NewStorageError(p, err)
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), suffix) {
			return nil
		}
		p = filepath.ToSlash(p)
		metaDir := path.Dir(p)
		if path.Base(metaDir) != DirName {
			return nil
		}

		name := strings.TrimSuffix(info.Name(), suffix)
		itemPath := path.Join(path.Dir(metaDir), name)
		if name == DirName {
			itemPath = path.Dir(metaDir)
		}

		rec, readErr := s.ReadLock(itemPath)
		return fn(itemPath, rec, readErr)
	})
}

// FilterReserved drops the reserved directory from a directory listing.
func FilterReserved(infos []os.FileInfo) []os.FileInfo {
	out := infos[:0]
	for _, fi := range infos {
		if !IsReserved(fi.Name()) {
			out = append(out, fi)
		}
	}
	return out
}
