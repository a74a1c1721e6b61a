package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{
		"":        FormatTable,
		" Table ": FormatTable,
		"JSON":    FormatJSON,
		"yml":     FormatYAML,
		"yaml":    FormatYAML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("csv")
	assert.ErrorContains(t, err, "csv")
}

func TestPrintFallsBackToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)
	require.NoError(t, p.Print(map[string]int{"count": 2}))
	assert.JSONEq(t, `{"count": 2}`, buf.String())
}

func TestPrintYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := PrinterFor(&buf, "yaml")
	require.NoError(t, err)
	require.NoError(t, p.Print(struct {
		Workspace string   `yaml:"workspace"`
		Paths     []string `yaml:"paths"`
	}{"docs", []string{"/a", "/b"}}))
	assert.Contains(t, buf.String(), "workspace: docs\n")
	assert.Contains(t, buf.String(), "- /b")
	assert.NotContains(t, buf.String(), "{")
}

func TestTables(t *testing.T) {
	t.Parallel()

	data := NewTableData("Workspace", "Root")
	data.AddRow("docs", "/srv/docs")
	data.AddRow("media", "/srv/media")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, data))
	out := buf.String()
	assert.Contains(t, out, "WORKSPACE")
	assert.Contains(t, out, "ROOT")
	assert.Equal(t, 2, strings.Count(out, "/srv/"))
	assert.Less(t, strings.Index(out, "docs"), strings.Index(out, "media"))

	buf.Reset()
	require.NoError(t, SimpleTable(&buf, [][2]string{{"Status", "healthy"}, {"Uptime", "3m"}}))
	assert.Contains(t, buf.String(), "healthy")
	assert.Contains(t, buf.String(), "Uptime")
}
