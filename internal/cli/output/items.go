package output

import (
	"sort"
	"strconv"
	"time"

	"github.com/marmos91/dittovfs/internal/bytesize"
	"github.com/marmos91/dittovfs/internal/cli/timeutil"
	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

// ItemList renders tree items, one per row.
//
// JSON and YAML output marshal the items themselves.
type ItemList []*tree.Item

// Headers implements TableRenderer.
func (l ItemList) Headers() []string {
	return []string{"Name", "Kind", "Size", "Media Type", "Modified", "Lock", "ID"}
}

// Rows implements TableRenderer.
func (l ItemList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, item := range l {
		rows = append(rows, []string{
			displayName(item),
			item.Kind.String(),
			displaySize(item),
			item.MediaType,
			timeutil.FormatLocal(item.Modified),
			displayLock(item),
			item.ID,
		})
	}
	return rows
}

func displayName(item *tree.Item) string {
	if item.IsFolder() && !item.IsRoot() {
		return item.Name + "/"
	}
	if item.IsRoot() {
		return "/"
	}
	return item.Name
}

func displaySize(item *tree.Item) string {
	if item.IsFolder() {
		return "-"
	}
	return bytesize.ByteSize(item.Size).String()
}

func displayLock(item *tree.Item) string {
	switch {
	case !item.Locked:
		return ""
	case item.LockPermanent:
		return "locked"
	default:
		return "until " + timeutil.FormatLocal(item.LockExpiry)
	}
}

// ItemDetail renders a single item as key/value pairs, properties included.
type ItemDetail struct {
	*tree.Item
}

// Headers implements TableRenderer.
func (d ItemDetail) Headers() []string {
	return []string{"Field", "Value"}
}

// Rows implements TableRenderer.
func (d ItemDetail) Rows() [][]string {
	rows := [][]string{
		{"ID", d.ID},
		{"Path", d.Path},
		{"Kind", d.Kind.String()},
		{"Created", d.Created.Format(time.RFC3339)},
		{"Modified", d.Modified.Format(time.RFC3339)},
	}
	if !d.IsFolder() {
		rows = append(rows,
			[]string{"Size", strconv.FormatInt(d.Size, 10)},
			[]string{"Media Type", d.MediaType},
			[]string{"Lock", displayLock(d.Item)},
		)
	}
	for _, key := range sortedKeys(d.Properties) {
		for _, v := range d.Properties[key] {
			rows = append(rows, []string{key, v})
		}
	}
	return rows
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
