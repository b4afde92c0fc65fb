package sheets

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable indicates the spreadsheet or the requested sheet could not be opened.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrStabilizationTimeout indicates the public export never settled and never returned data.
var ErrStabilizationTimeout = errors.New("sheet data did not stabilize")

// ErrMalformedSource indicates the export could not be read as delimited text.
var ErrMalformedSource = errors.New("source is not valid CSV")

// SourceError records which acquisition step failed for which locator.
type SourceError struct {
	Op      string // "open", "read", "export"
	Locator string
	Err     error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func newSourceError(op, locator string, err error) *SourceError {
	return &SourceError{
		Op:      op,
		Locator: locator,
		Err:     err,
	}
}
