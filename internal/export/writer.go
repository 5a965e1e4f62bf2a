package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// RowWriter consumes a header followed by rendered rows. Implementations
// stream: a row is on its way to the destination once WriteRow returns.
type RowWriter interface {
	// WriteHeader records the column names. Called exactly once, before
	// the first WriteRow.
	WriteHeader(columns []string) error

	// WriteRow writes one record's cells, aligned with the header.
	WriteRow(values []string) error

	// Close flushes buffered output and finalizes the document. No
	// writes may follow.
	Close() error
}

// csvWriter renders rows through encoding/csv. A comma delimiter gives
// CSV, a tab gives TSV.
type csvWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a RowWriter emitting delimiter-separated values.
func NewCSVWriter(w io.Writer, delimiter rune) RowWriter {
	inner := csv.NewWriter(w)
	inner.Comma = delimiter
	return &csvWriter{w: inner}
}

func (c *csvWriter) WriteHeader(columns []string) error {
	return c.w.Write(columns)
}

func (c *csvWriter) WriteRow(values []string) error {
	return c.w.Write(values)
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

// jsonRowsWriter renders rows as a JSON array of flat objects, one
// object per record, keyed by column name. The array is streamed, so
// arbitrarily large harvests never build up in memory.
type jsonRowsWriter struct {
	w       io.Writer
	columns []string
	rows    int
	closed  bool
}

// NewJSONRowsWriter creates a RowWriter emitting a JSON array of
// column-keyed objects.
func NewJSONRowsWriter(w io.Writer) RowWriter {
	return &jsonRowsWriter{w: w}
}

func (j *jsonRowsWriter) WriteHeader(columns []string) error {
	j.columns = columns
	_, err := io.WriteString(j.w, "[")
	return err
}

func (j *jsonRowsWriter) WriteRow(values []string) error {
	if len(values) != len(j.columns) {
		return fmt.Errorf("row has %d cells, header has %d columns", len(values), len(j.columns))
	}

	// Rebuild the object in column order. encoding/json sorts map keys,
	// so an ordered build needs manual assembly of the pairs.
	separator := ",\n  "
	if j.rows == 0 {
		separator = "\n  "
	}
	if _, err := io.WriteString(j.w, separator+"{"); err != nil {
		return err
	}
	for i, column := range j.columns {
		name, err := json.Marshal(column)
		if err != nil {
			return err
		}
		value, err := json.Marshal(values[i])
		if err != nil {
			return err
		}
		pair := string(name) + ": " + string(value)
		if i > 0 {
			pair = ", " + pair
		}
		if _, err := io.WriteString(j.w, pair); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(j.w, "}"); err != nil {
		return err
	}
	j.rows++
	return nil
}

func (j *jsonRowsWriter) Close() error {
	if j.closed {
		return nil
	}
	j.closed = true
	if j.rows == 0 {
		_, err := io.WriteString(j.w, "]\n")
		return err
	}
	_, err := io.WriteString(j.w, "\n]\n")
	return err
}
