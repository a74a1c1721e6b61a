// Package search keeps a term index of item names and property values.
//
// The index is an event subscriber: it never reads the tree on its own,
// except for property values, which it fetches from a PropertySource when a
// PROPERTIES_UPDATED or CREATED event arrives. Handlers are idempotent, so
// an event delivered twice (once by the tree and once by the filesystem
// watcher) leaves the index unchanged.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/events"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

// Key prefixes
const (
	prefixTerm = "t:" // t:{workspace}:{term}:{path} -> empty
	prefixDoc  = "p:" // p:{workspace}:{path} -> JSON(document)
)

// DefaultLimit caps Search results when the caller passes zero.
const DefaultLimit = 100

// PropertySource returns the user properties of an item.
type PropertySource interface {
	ReadProperties(ctx context.Context, workspace, p string) (map[string][]string, error)
}

// Config configures an Index.
type Config struct {
	// Path is the badger directory; ignored when InMemory is set
	Path string

	// InMemory keeps the index in RAM only
	InMemory bool

	// Properties supplies property values; nil indexes names only
	Properties PropertySource

	Metrics *Metrics
}

// document is the stored record of one indexed item.
type document struct {
	Name  []string `json:"name"`
	Props []string `json:"props,omitempty"`
}

func (d document) terms() []string {
	return mergeTerms(d.Name, d.Props)
}

// Index is a badger-backed inverted index.
//
// Storage Model:
//   - p:{workspace}:{path} -> JSON(document), one per indexed item
//   - t:{workspace}:{term}:{path} -> empty, one per term of the item
//
// Writes are serialized by mu; reads use badger snapshots.
type Index struct {
	db      *badgerdb.DB
	props   PropertySource
	metrics *Metrics
	mu      sync.Mutex
}

// Open opens or creates the index described by cfg.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("search index path is required unless in_memory is set")
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING).WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open search index at %s: %w", cfg.Path, err)
	}

	logger.Info("Search index opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &Index{db: db, props: cfg.Properties, metrics: cfg.Metrics}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	if err := ix.db.Close(); err != nil {
		return fmt.Errorf("failed to close search index: %w", err)
	}
	return nil
}

// Name identifies the index in bus logs.
func (ix *Index) Name() string {
	return "search-index"
}

// HandleEvent updates the index for one change event.
func (ix *Index) HandleEvent(ctx context.Context, ev events.Event) error {
	ix.metrics.observeEvent(ev.Kind)

	switch ev.Kind {
	case events.Created:
		return ix.Put(ctx, ev.Workspace, ev.Path, ix.readProps(ctx, ev.Workspace, ev.Path))
	case events.PropertiesUpdated:
		return ix.Put(ctx, ev.Workspace, ev.Path, ix.readProps(ctx, ev.Workspace, ev.Path))
	case events.Deleted:
		return ix.Remove(ctx, ev.Workspace, ev.Path)
	case events.Moved, events.Renamed:
		return ix.Move(ctx, ev.Workspace, ev.OldPath, ev.Path)
	default:
		return nil
	}
}

func (ix *Index) readProps(ctx context.Context, ws, p string) map[string][]string {
	if ix.props == nil {
		return nil
	}
	props, err := ix.props.ReadProperties(ctx, ws, p)
	if err != nil {
		logger.DebugCtx(ctx, "Indexing without properties",
			logger.KeyWorkspace, ws, logger.KeyPath, p, logger.Err(err))
		return nil
	}
	return props
}

// Put indexes the item at p with its name and property values, replacing
// any previous record.
func (ix *Index) Put(ctx context.Context, ws, p string, props map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = identity.Clean(p)
	if p == "/" {
		return nil
	}

	doc := document{Name: Tokenize(identity.Base(p))}
	for _, values := range props {
		for _, v := range values {
			doc.Props = mergeTerms(doc.Props, Tokenize(v))
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.db.Update(func(txn *badgerdb.Txn) error {
		if err := ix.deleteDocTx(txn, ws, p); err != nil {
			return err
		}
		return ix.putDocTx(txn, ws, p, doc)
	})
}

// Remove drops p and everything below it.
func (ix *Index) Remove(ctx context.Context, ws, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p = identity.Clean(p)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	docs, err := ix.subtree(ws, p)
	if err != nil {
		return err
	}
	for _, path := range sortedKeys(docs) {
		if err := ix.db.Update(func(txn *badgerdb.Txn) error {
			return ix.deleteDocTx(txn, ws, path)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Move re-keys oldPath and everything below it to newPath. The moved item
// takes the terms of its new name; descendants keep theirs.
func (ix *Index) Move(ctx context.Context, ws, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oldPath, newPath = identity.Clean(oldPath), identity.Clean(newPath)
	if oldPath == newPath {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	docs, err := ix.subtree(ws, oldPath)
	if err != nil {
		return err
	}
	if _, ok := docs[oldPath]; !ok {
		// Never indexed, e.g. created before the index existed.
		docs[oldPath] = document{}
	}

	for _, src := range sortedKeys(docs) {
		doc := docs[src]
		dst := identity.Rebase(src, oldPath, newPath)
		if src == oldPath {
			doc.Name = Tokenize(identity.Base(newPath))
		}
		if err := ix.db.Update(func(txn *badgerdb.Txn) error {
			if err := ix.deleteDocTx(txn, ws, src); err != nil {
				return err
			}
			if err := ix.deleteDocTx(txn, ws, dst); err != nil {
				return err
			}
			return ix.putDocTx(txn, ws, dst, doc)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the paths in ws whose terms include every one of terms,
// sorted, at most limit of them. Query terms are tokenized like names.
func (ix *Index) Search(ctx context.Context, ws string, terms []string, limit int) (paths []string, err error) {
	ctx, span := telemetry.StartSearchSpan(ctx, "query", telemetry.Workspace(ws))
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
	}()

	if limit < 0 {
		return nil, vfserrors.NewInvalidArgumentError("", "limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultLimit
	}

	var query []string
	for _, term := range terms {
		query = mergeTerms(query, Tokenize(term))
	}
	if len(query) == 0 {
		return nil, vfserrors.NewInvalidArgumentError("", "search needs at least one term")
	}
	ix.metrics.observeQuery()

	var matches map[string]struct{}
	err = ix.db.View(func(txn *badgerdb.Txn) error {
		for _, term := range query {
			found, err := scanTerm(txn, ws, term)
			if err != nil {
				return err
			}
			if matches == nil {
				matches = found
			} else {
				for p := range matches {
					if _, ok := found[p]; !ok {
						delete(matches, p)
					}
				}
			}
			if len(matches) == 0 {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	paths = make([]string, 0, len(matches))
	for p := range matches {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// Count returns the number of indexed items in ws.
func (ix *Index) Count(ctx context.Context, ws string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := ix.db.View(func(txn *badgerdb.Txn) error {
		prefix := []byte(docKey(ws, ""))
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// ============================================================================
// Transaction helpers
// ============================================================================

func docKey(ws, p string) string {
	return prefixDoc + ws + ":" + p
}

func termKey(ws, term, p string) string {
	return prefixTerm + ws + ":" + term + ":" + p
}

func (ix *Index) putDocTx(txn *badgerdb.Txn, ws, p string, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}
	if err := txn.Set([]byte(docKey(ws, p)), data); err != nil {
		return err
	}
	for _, term := range doc.terms() {
		if err := txn.Set([]byte(termKey(ws, term, p)), nil); err != nil {
			return err
		}
	}
	return nil
}

// deleteDocTx removes the record of p and its term keys. A missing record
// is not an error.
func (ix *Index) deleteDocTx(txn *badgerdb.Txn, ws, p string) error {
	doc, err := getDocTx(txn, ws, p)
	if err != nil || doc == nil {
		return err
	}
	if err := txn.Delete([]byte(docKey(ws, p))); err != nil {
		return err
	}
	for _, term := range doc.terms() {
		if err := txn.Delete([]byte(termKey(ws, term, p))); err != nil {
			return err
		}
	}
	return nil
}

func getDocTx(txn *badgerdb.Txn, ws, p string) (*document, error) {
	item, err := txn.Get([]byte(docKey(ws, p)))
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc document
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &doc)
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search document: %w", err)
	}
	return &doc, nil
}

// subtree returns the records of p and of every path below it.
func (ix *Index) subtree(ws, p string) (map[string]document, error) {
	docs := make(map[string]document)
	err := ix.db.View(func(txn *badgerdb.Txn) error {
		doc, err := getDocTx(txn, ws, p)
		if err != nil {
			return err
		}
		if doc != nil {
			docs[p] = *doc
		}

		below := p + "/"
		if p == "/" {
			below = "/"
		}
		prefix := []byte(docKey(ws, below))
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			path := strings.TrimPrefix(string(item.Key()), docKey(ws, ""))
			var d document
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				logger.Warn("Skipping unreadable search document", logger.KeyPath, path, logger.Err(err))
				continue
			}
			docs[path] = d
		}
		return nil
	})
	return docs, err
}

func scanTerm(txn *badgerdb.Txn, ws, term string) (map[string]struct{}, error) {
	prefix := []byte(termKey(ws, term, ""))
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	found := make(map[string]struct{})
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		found[string(it.Item().Key()[len(prefix):])] = struct{}{}
	}
	return found, nil
}

func sortedKeys(docs map[string]document) []string {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
