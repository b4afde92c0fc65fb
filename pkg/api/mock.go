package api

import (
	"context"

	"tablesalive/pkg/sheets"
	"tablesalive/pkg/table"
)

type mockTableFetcher struct {
	FetchTableFunc func(ctx context.Context, ref sheets.Reference) (*table.Table, error)
	Calls          []sheets.Reference
}

func (m *mockTableFetcher) FetchTable(ctx context.Context, ref sheets.Reference) (*table.Table, error) {
	m.Calls = append(m.Calls, ref)
	return m.FetchTableFunc(ctx, ref)
}
