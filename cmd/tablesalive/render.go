package main

import (
	"encoding/json"
	"fmt"
	"io"

	"tablesalive/pkg/table"
)

const (
	formatRecords = "records"
	formatSummary = "summary"
	formatCSV     = "csv"
)

func validFormat(f string) bool {
	switch f {
	case formatRecords, formatSummary, formatCSV:
		return true
	}
	return false
}

// render writes t to w in the given output format. JSON output is indented.
func render(w io.Writer, t *table.Table, format string) error {
	var v interface{}
	switch format {
	case formatCSV:
		return table.WriteCSV(w, t)
	case formatRecords:
		v = table.Records(t)
	case formatSummary:
		v = table.Summarize(t)
	default:
		return fmt.Errorf("invalid format: %s", format)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
