package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/tree"
)

func sampleItems() ItemList {
	mod := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return ItemList{
		{ID: "root", Name: "", Path: "/", Kind: tree.KindFolder, Modified: mod},
		{ID: "ZG9jcw", Name: "docs", Path: "/docs", Kind: tree.KindFolder, Modified: mod},
		{ID: "cmVwb3J0", Name: "report.pdf", Path: "/report.pdf", Kind: tree.KindFile,
			Size: 2048, MediaType: "application/pdf", Modified: mod, Locked: true, LockPermanent: true},
	}
}

func TestItemListRows(t *testing.T) {
	t.Parallel()

	rows := sampleItems().Rows()
	require.Len(t, rows, 3)

	assert.Equal(t, "/", rows[0][0])
	assert.Equal(t, "docs/", rows[1][0])
	assert.Equal(t, "-", rows[1][2])
	assert.Equal(t, "report.pdf", rows[2][0])
	assert.Equal(t, "file", rows[2][1])
	assert.Equal(t, "2.00KiB", rows[2][2])
	assert.Equal(t, "locked", rows[2][5])
	assert.Equal(t, "cmVwb3J0", rows[2][6])
}

func TestItemListPrint(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := PrinterFor(&buf, "table")
	require.NoError(t, err)
	require.NoError(t, p.Print(sampleItems()))
	assert.Contains(t, buf.String(), "MEDIA TYPE")
	assert.Contains(t, buf.String(), "report.pdf")

	buf.Reset()
	p, err = PrinterFor(&buf, "json")
	require.NoError(t, err)
	require.NoError(t, p.Print(sampleItems()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "folder", decoded[1]["kind"])

	_, err = PrinterFor(&buf, "xml")
	assert.Error(t, err)
}

func TestItemDetailRows(t *testing.T) {
	t.Parallel()

	item := sampleItems()[2]
	item.Properties = map[string][]string{"tags": {"a", "b"}, "author": {"alice"}}

	rows := ItemDetail{Item: item}.Rows()
	var keys []string
	for _, r := range rows {
		keys = append(keys, r[0])
	}
	assert.Equal(t, []string{"ID", "Path", "Kind", "Created", "Modified", "Size", "Media Type", "Lock", "author", "tags", "tags"}, keys)
}
