package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
)

const previewSize = 10

// Record is one row keyed by column id. It marshals as a JSON object whose
// keys follow the table's column order.
type Record struct {
	columns []string
	values  []Value
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Records returns every row as a Record.
func Records(t *Table) []Record {
	return recordsN(t, len(t.Rows))
}

func recordsN(t *Table, n int) []Record {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = Record{columns: t.Columns, values: t.Rows[i]}
	}
	return out
}

// Summary is the analysis view of a table.
type Summary struct {
	Columns        []string `json:"columns"`
	Preview        []Record `json:"preview"`
	TotalRows      int      `json:"total_rows"`
	NumericColumns []string `json:"numeric_columns"`
}

// Summarize builds the analysis view: column ids, the first ten records, the
// row count and the columns whose non-null values are all numbers.
func Summarize(t *Table) Summary {
	return Summary{
		Columns:        t.Columns,
		Preview:        recordsN(t, previewSize),
		TotalRows:      t.Len(),
		NumericColumns: NumericColumns(t),
	}
}

// NumericColumns classifies whole columns: a column qualifies when it holds at
// least one number and no non-null text.
func NumericColumns(t *Table) []string {
	cols := []string{}
	for i, c := range t.Columns {
		numbers := 0
		numeric := true
		for _, row := range t.Rows {
			v := row[i]
			if v.IsNull() {
				continue
			}
			if v.Kind() != Number {
				numeric = false
				break
			}
			numbers++
		}
		if numeric && numbers > 0 {
			cols = append(cols, c)
		}
	}
	return cols
}

// WriteCSV writes the column ids as the first line followed by one line per
// record. Null cells are written as empty fields.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := writeCSVLine(w, cw, t.Columns); err != nil {
		return err
	}
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			line[i] = v.String()
		}
		if err := writeCSVLine(w, cw, line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeCSVLine writes one record through cw. A lone empty field would come out
// as a bare empty line, which readers skip, so it is written quoted.
func writeCSVLine(w io.Writer, cw *csv.Writer, line []string) error {
	if len(line) != 1 || line[0] != "" {
		return cw.Write(line)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}
