package tree

import (
	"io"

	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/vfs/acl"
	vfserrors "github.com/marmos91/dittovfs/pkg/vfs/errors"
	"github.com/marmos91/dittovfs/pkg/vfs/identity"
)

// ListOptions selects and pages the children returned by ListChildren.
type ListOptions struct {
	// Skip drops the first Skip matching children
	Skip int

	// Max caps the number of returned children; 0 means no limit
	Max int

	// Type keeps only files or only folders; 0 keeps both
	Type Kind

	// Properties keeps children having every listed property. A non-empty
	// value must be contained in one of the property's values.
	Properties map[string]string
}

// Children is one page of a folder listing.
type Children struct {
	Items   []*Item `json:"items"`
	HasMore bool    `json:"has_more"`
	Total   int     `json:"total"`
}

// GetItem returns the item identified by id. Requires READ on the item.
func (t *Tree) GetItem(ac *AuthContext, id string) (item *Item, err error) {
	ac, done := t.begin(ac, "get_item", telemetry.ItemID(id))
	defer func() { done(err) }()

	p, err := t.resolve(id)
	if err != nil {
		return nil, err
	}
	return t.readable(ac, p)
}

// GetItemByPath returns the item at p. Requires READ on the item.
func (t *Tree) GetItemByPath(ac *AuthContext, p string) (item *Item, err error) {
	ac, done := t.begin(ac, "get_item_by_path", telemetry.Path(p))
	defer func() { done(err) }()

	p = identity.Clean(p)
	if _, err := t.resolve(identity.PathToID(t.workspace, p)); err != nil {
		return nil, err
	}
	return t.readable(ac, p)
}

func (t *Tree) readable(ac *AuthContext, p string) (*Item, error) {
	fi, err := t.stat(p)
	if err != nil {
		return nil, err
	}
	item, err := t.buildItem(p, fi)
	if err != nil {
		return nil, err
	}
	if err := t.checkACL(ac, p, item.ACL, acl.PermRead); err != nil {
		return nil, err
	}
	return item, nil
}

// ListChildren returns the children of the folder parentID, sorted by name,
// filtered and paged by opts. Requires READ on the folder. The reserved
// metadata directory is never listed.
func (t *Tree) ListChildren(ac *AuthContext, parentID string, opts ListOptions) (page *Children, err error) {
	ac, done := t.begin(ac, "list_children", telemetry.ItemID(parentID))
	defer func() { done(err) }()

	if opts.Skip < 0 || opts.Max < 0 {
		return nil, vfserrors.NewInvalidArgumentError("", "skip and max must not be negative")
	}

	p, err := t.resolve(parentID)
	if err != nil {
		return nil, err
	}
	if _, err := t.statFolder(p); err != nil {
		return nil, err
	}
	if err := t.checkAccess(ac, p, acl.PermRead); err != nil {
		return nil, err
	}

	infos, err := t.readDir(p)
	if err != nil {
		return nil, err
	}

	page = &Children{Items: []*Item{}}
	for _, fi := range infos {
		child, err := t.buildItem(identity.Join(p, fi.Name()), fi)
		if err != nil {
			if vfserrors.IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		if !opts.matches(child) {
			continue
		}

		page.Total++
		if page.Total <= opts.Skip {
			continue
		}
		if opts.Max > 0 && len(page.Items) == opts.Max {
			page.HasMore = true
			continue
		}
		page.Items = append(page.Items, child)
	}
	return page, nil
}

// OpenContent opens the content of the file id for reading. Requires READ.
// The caller closes the reader.
func (t *Tree) OpenContent(ac *AuthContext, id string) (rc io.ReadCloser, item *Item, err error) {
	ac, done := t.begin(ac, "open_content", telemetry.ItemID(id))
	defer func() { done(err) }()

	p, err := t.resolve(id)
	if err != nil {
		return nil, nil, err
	}
	item, err = t.readable(ac, p)
	if err != nil {
		return nil, nil, err
	}
	if item.IsFolder() {
		return nil, nil, vfserrors.NewInvalidArgumentError(p, "folders have no content")
	}

	f, err := t.fs.Open(p)
	if err != nil {
		return nil, nil, fsError(p, err)
	}
	return f, item, nil
}
