package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmptyFile      = errors.New("file has no header row")
	ErrMissingColumns = errors.New("missing required columns")
)

// Table is an uploaded CSV file with column access by header name.
type Table struct {
	columns map[string]int
	header  []string
	rows    []Row
}

// Row is a single data record of a Table.
type Row struct {
	line   int
	fields []string
	table  *Table
}

// ReadCSV reads the whole of r. The first record is the header; header names
// are trimmed and a leading byte order mark is dropped. Records may be ragged.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := &Table{columns: make(map[string]int, len(header))}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		t.header = append(t.header, name)
		if _, dup := t.columns[name]; !dup {
			t.columns[name] = i
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		t.rows = append(t.rows, Row{line: line, fields: rec, table: t})
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Require returns ErrMissingColumns naming every absent column.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Header returns the trimmed column names in file order.
func (t *Table) Header() []string { return t.header }

// Rows returns the non-blank data rows.
func (t *Table) Rows() []Row { return t.rows }

// Get returns the trimmed value of column name, or "" when the column is
// absent or the record is short.
func (r Row) Get(name string) string {
	i, ok := r.table.columns[name]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// Line is the 1-based line number of the row in the source file.
func (r Row) Line() int { return r.line }
