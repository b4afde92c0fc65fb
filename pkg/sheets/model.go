package sheets

import "context"

// Reference identifies a spreadsheet and optionally one sheet ("gid") in it.
type Reference struct {
	Locator    string
	SheetID    string
	HasHeaders bool
}

// ValuesReader reads a sheet's full cell grid through an authenticated API.
type ValuesReader interface {
	ReadValues(ctx context.Context, locator, sheetID string) ([][]string, error)
}

// FetchFunc returns one candidate snapshot of a sheet.
type FetchFunc func(ctx context.Context) ([][]string, error)
