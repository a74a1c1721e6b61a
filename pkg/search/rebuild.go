package search

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/marmos91/dittovfs/internal/logger"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/meta"
)

// Rebuild drops every record of ws and indexes the items found on disk
// under store. Property values come from the index's PropertySource when it
// has one, from store otherwise. Changes made while the server was down, or the whole
// workspace of an in-memory index, become searchable this way.
//
// Returns the number of items indexed.
func (ix *Index) Rebuild(ctx context.Context, ws string, store *meta.Store) (int, error) {
	start := time.Now()
	if err := ix.Remove(ctx, ws, "/"); err != nil {
		return 0, err
	}

	n := 0
	err := afero.Walk(store.Fs(), "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return vfserrors.NewStorageError(p, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if meta.IsReserved(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		p = filepath.ToSlash(p)
		if p == "/" {
			return nil
		}

		var props map[string][]string
		if ix.props != nil {
			props = ix.readProps(ctx, ws, p)
		} else if props, err = store.ReadProperties(p); err != nil {
			logger.WarnCtx(ctx, "Indexing without properties",
				logger.KeyWorkspace, ws, logger.KeyPath, p, logger.Err(err))
			props = nil
		}
		if err := ix.Put(ctx, ws, p, props); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	logger.InfoCtx(ctx, "Search index rebuilt",
		logger.KeyWorkspace, ws,
		logger.KeyCount, n,
		logger.DurationMs(start))
	return n, nil
}
