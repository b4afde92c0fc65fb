package table

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
)

type Kind int

const (
	Null Kind = iota
	Text
	Number
)

// numericRegex matches plain decimal literals. strconv.ParseFloat alone would also
// accept "NaN", "Inf" and hex floats, none of which a spreadsheet user means as a number.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Value is a single cell. Numbers keep the literal they were parsed from so
// that exporting a table reproduces the source text.
type Value struct {
	kind Kind
	raw  string
	num  float64
}

func NullValue() Value {
	return Value{kind: Null}
}

func TextValue(s string) Value {
	return Value{kind: Text, raw: s}
}

// ParseValue infers the kind of a raw cell.
func ParseValue(s string) Value {
	if numericRegex.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && !math.IsInf(f, 0) {
			return Value{kind: Number, raw: s, num: f}
		}
	}
	return TextValue(s)
}

func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value renders as null in projections: structurally
// absent cells and empty text are not distinguished.
func (v Value) IsNull() bool {
	return v.kind == Null || (v.kind == Text && v.raw == "")
}

// String returns the cell text; Null renders as "".
func (v Value) String() string {
	return v.raw
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNull() {
		return []byte("null"), nil
	}
	if v.kind == Number {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.raw)
}
