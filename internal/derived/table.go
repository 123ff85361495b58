// Package derived reduces sampled events into the flat CSV tables produced
// by the downstream processing pipeline.
//
// Every table is computed from vocabulary keys. Display names only ever
// appear as cell text, so renaming a vocabulary entry changes embedded
// strings but never a column identifier or a numeric value.
package derived

import (
	"fmt"
	"strconv"
)

// Table is an in-memory CSV table. All cells are preformatted strings;
// an empty cell stands for a missing value.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// NewTable creates an empty table with the given header.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// FileName is the CSV file the table is written to.
func (t *Table) FileName() string {
	if t.Name == ProcessedName {
		return t.Name + ".csv"
	}
	return t.Name + "_data.csv"
}

// Append adds a row. It panics when the row width does not match the
// header, which is a programming error.
func (t *Table) Append(cells ...string) {
	if len(cells) != len(t.Columns) {
		panic(fmt.Sprintf("derived: %s row has %d cells, header has %d", t.Name, len(cells), len(t.Columns)))
	}
	t.Rows = append(t.Rows, cells)
}

// Column returns the index of name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row i under column name.
func (t *Table) Cell(i int, name string) (string, bool) {
	c := t.Column(name)
	if c < 0 || i < 0 || i >= len(t.Rows) {
		return "", false
	}
	return t.Rows[i][c], true
}

func itoa(n int) string { return strconv.Itoa(n) }

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
