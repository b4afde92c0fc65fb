// Package table turns raw spreadsheet grids into column-aligned tables and
// renders them as records, summaries or CSV.
package table

import (
	"strconv"
)

// Table is a normalized grid. Every row holds exactly len(Columns) values.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Normalize builds a Table from a raw grid. With hasHeaders the first row
// supplies the column ids; otherwise every row is data and columns are the
// positional indices of the widest row.
func Normalize(grid [][]string, hasHeaders bool) *Table {
	t := &Table{Columns: []string{}, Rows: [][]Value{}}
	if len(grid) == 0 {
		return t
	}

	data := grid
	if hasHeaders {
		t.Columns = uniqueColumns(grid[0])
		data = grid[1:]
	} else {
		width := 0
		for _, row := range grid {
			if len(row) > width {
				width = len(row)
			}
		}
		t.Columns = make([]string, width)
		for i := range t.Columns {
			t.Columns[i] = strconv.Itoa(i)
		}
	}

	for _, row := range data {
		t.Rows = append(t.Rows, rectangularize(row, len(t.Columns)))
	}
	return t
}

// rectangularize pads short rows with nulls and drops surplus cells.
func rectangularize(row []string, width int) []Value {
	out := make([]Value, width)
	for i := range out {
		if i < len(row) {
			out[i] = ParseValue(row[i])
		} else {
			out[i] = NullValue()
		}
	}
	return out
}

// uniqueColumns returns header cells with repeats renamed to "name.1",
// "name.2", ... so that no column's data is shadowed by another.
func uniqueColumns(header []string) []string {
	original := make(map[string]bool, len(header))
	for _, h := range header {
		original[h] = true
	}

	assigned := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	cols := make([]string, len(header))
	for i, h := range header {
		if !assigned[h] {
			assigned[h] = true
			cols[i] = h
			continue
		}
		n := suffix[h]
		var name string
		for {
			n++
			name = h + "." + strconv.Itoa(n)
			if !original[name] && !assigned[name] {
				break
			}
		}
		suffix[h] = n
		assigned[name] = true
		cols[i] = name
	}
	return cols
}
