package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCSVWriter verifies comma output with quoting handled by
// encoding/csv.
func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, ',')

	require.NoError(t, w.WriteHeader([]string{"undl_id", "title"}))
	require.NoError(t, w.WriteRow([]string{"1", "Plain title"}))
	require.NoError(t, w.WriteRow([]string{"2", `Title, with "quotes"`}))
	require.NoError(t, w.Close())

	assert.Equal(t,
		"undl_id,title\n"+
			"1,Plain title\n"+
			"2,\"Title, with \"\"quotes\"\"\"\n",
		buf.String())
}

// TestCSVWriter_Tab verifies the TSV variant.
func TestCSVWriter_Tab(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, '\t')

	require.NoError(t, w.WriteHeader([]string{"undl_id", "title"}))
	require.NoError(t, w.WriteRow([]string{"1", "A title"}))
	require.NoError(t, w.Close())

	assert.Equal(t, "undl_id\ttitle\n1\tA title\n", buf.String())
}

// TestJSONRowsWriter verifies the streamed array: valid JSON, one
// object per row, keys in column order semantics preserved by value.
func TestJSONRowsWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONRowsWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"undl_id", "title"}))
	require.NoError(t, w.WriteRow([]string{"1", "First"}))
	require.NoError(t, w.WriteRow([]string{"2", "Second \"quoted\""}))
	require.NoError(t, w.Close())

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows), "output must be valid JSON: %s", buf.String())
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]string{"undl_id": "1", "title": "First"}, rows[0])
	assert.Equal(t, map[string]string{"undl_id": "2", "title": `Second "quoted"`}, rows[1])
}

// TestJSONRowsWriter_Empty verifies a harvest with zero records still
// produces a valid document.
func TestJSONRowsWriter_Empty(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONRowsWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"undl_id"}))
	require.NoError(t, w.Close())

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Empty(t, rows)
}

// TestJSONRowsWriter_CellCountMismatch verifies misaligned rows are
// rejected instead of producing a corrupt document.
func TestJSONRowsWriter_CellCountMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONRowsWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"undl_id", "title"}))
	err := w.WriteRow([]string{"only-one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 cells")
}
