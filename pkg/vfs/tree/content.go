package tree

import (
	"bytes"
	"errors"
	"io"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

// sniffLen is how much of the content is inspected to detect a media type.
const sniffLen = 3072

// detectMediaType returns mediaType unchanged when set. Otherwise it peeks
// at the head of r and returns a reader replaying the whole content along
// with the detected type.
func detectMediaType(r io.Reader, mediaType string) (io.Reader, string, error) {
	if mediaType != "" {
		return r, mediaType, nil
	}
	if r == nil {
		return nil, mimetype.Detect(nil).String(), nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), mimetype.Detect(head).String(), nil
}

// writeContent replaces the file at p with the bytes of r. The data is
// written to a temporary file in the parent's metadata directory and renamed
// into place, so readers see either the old or the new content.
func (t *Tree) writeContent(p string, r io.Reader) (int64, error) {
	dir := path.Join(identity.Parent(p), meta.DirName)
	if err := t.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, vfserrors.NewStorageError(dir, err)
	}

	tmp, err := afero.TempFile(t.fs, dir, ".upload-*")
	if err != nil {
		return 0, vfserrors.NewStorageError(p, err)
	}
	tmpName := tmp.Name()

	var n int64
	if r != nil {
		n, err = io.Copy(tmp, r)
	}
	if err != nil {
		_ = tmp.Close()
		_ = t.fs.Remove(tmpName)
		return 0, vfserrors.NewStorageError(p, err)
	}
	if err := tmp.Close(); err != nil {
		_ = t.fs.Remove(tmpName)
		return 0, vfserrors.NewStorageError(p, err)
	}
	if err := t.fs.Rename(tmpName, p); err != nil {
		_ = t.fs.Remove(tmpName)
		return 0, vfserrors.NewStorageError(p, err)
	}
	return n, nil
}

// copyContent duplicates the file at src onto dst.
func (t *Tree) copyContent(src, dst string) error {
	f, err := t.fs.Open(src)
	if err != nil {
		return fsError(src, err)
	}
	defer func() { _ = f.Close() }()

	_, err = t.writeContent(dst, f)
	return err
}
