package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablesalive/pkg/config"
	"tablesalive/pkg/sheets"
	"tablesalive/pkg/table"
)

var fruitGrid = [][]string{
	{"name", "qty"},
	{"apple", "3"},
	{"pear", ""},
}

func newTestRouter(fetcher TableFetcher) http.Handler {
	cfg := config.Default()
	cfg.Rate.Enabled = false
	return GetRouter(fetcher, cfg)
}

func fetcherFor(grid [][]string) *mockTableFetcher {
	return &mockTableFetcher{
		FetchTableFunc: func(ctx context.Context, ref sheets.Reference) (*table.Table, error) {
			return table.Normalize(grid, ref.HasHeaders), nil
		},
	}
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertNoCache(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
}

func TestGetIndex(t *testing.T) {
	rec := doRequest(newTestRouter(fetcherFor(nil)), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestPostData(t *testing.T) {
	fetcher := fetcherFor(fruitGrid)
	rec := doRequest(newTestRouter(fetcher), http.MethodPost, "/data",
		`{"sheet_url":"https://docs.google.com/spreadsheets/d/abc/edit","gid":"12"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assertNoCache(t, rec)
	assert.JSONEq(t, `[{"name":"apple","qty":3},{"name":"pear","qty":null}]`, rec.Body.String())

	require.Len(t, fetcher.Calls, 1)
	assert.Equal(t, sheets.Reference{
		Locator:    "https://docs.google.com/spreadsheets/d/abc/edit",
		SheetID:    "12",
		HasHeaders: true,
	}, fetcher.Calls[0])
}

func TestPostDataKeepsColumnOrder(t *testing.T) {
	rec := doRequest(newTestRouter(fetcherFor([][]string{{"z", "a"}, {"1", "2"}})),
		http.MethodPost, "/data", `{"sheet_url":"abc"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"z":1,"a":2}]`, rec.Body.String())
}

func TestPostDataWithoutHeaders(t *testing.T) {
	fetcher := fetcherFor(fruitGrid)
	rec := doRequest(newTestRouter(fetcher), http.MethodPost, "/data",
		`{"sheet_url":"abc","gid":7,"has_headers":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 3)
	assert.Equal(t, "name", records[0]["0"])

	require.Len(t, fetcher.Calls, 1)
	assert.Equal(t, "7", fetcher.Calls[0].SheetID)
	assert.False(t, fetcher.Calls[0].HasHeaders)
}

func TestPostAnalyze(t *testing.T) {
	rec := doRequest(newTestRouter(fetcherFor(fruitGrid)), http.MethodPost, "/analyze",
		`{"sheet_url":"abc","gid":null}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assertNoCache(t, rec)
	assert.JSONEq(t, `{
		"columns": ["name", "qty"],
		"preview": [{"name":"apple","qty":3},{"name":"pear","qty":null}],
		"total_rows": 2,
		"numeric_columns": ["qty"]
	}`, rec.Body.String())
}

func TestPostDownload(t *testing.T) {
	rec := doRequest(newTestRouter(fetcherFor(fruitGrid)), http.MethodPost, "/download",
		`{"sheet_url":"abc"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assertNoCache(t, rec)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=data.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "name,qty\napple,3\npear,\n", rec.Body.String())
}

func TestBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `sheet_url=abc`},
		{"empty body", ``},
		{"missing sheet_url", `{"gid":"1"}`},
		{"blank sheet_url", `{"sheet_url":"   "}`},
		{"gid of wrong type", `{"sheet_url":"abc","gid":true}`},
		{"has_headers of wrong type", `{"sheet_url":"abc","has_headers":"yes"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := fetcherFor(fruitGrid)
			rec := doRequest(newTestRouter(fetcher), http.MethodPost, "/data", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assertNoCache(t, rec)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, codeBadRequest, resp.Code)
			assert.NotEmpty(t, resp.Error)
			assert.Empty(t, fetcher.Calls)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unavailable", fmt.Errorf("open: %w", sheets.ErrSourceUnavailable), http.StatusNotFound, codeSourceUnavailable},
		{"malformed", fmt.Errorf("export: %w", sheets.ErrMalformedSource), http.StatusUnprocessableEntity, codeMalformedSource},
		{"timeout", fmt.Errorf("export: %w", sheets.ErrStabilizationTimeout), http.StatusGatewayTimeout, codeStabilizationTimeout},
		{"other", errors.New("connection reset by peer"), http.StatusBadGateway, codeUpstreamError},
	}
	for _, tt := range tests {
		for _, path := range []string{"/data", "/analyze", "/download"} {
			t.Run(tt.name+path, func(t *testing.T) {
				fetcher := &mockTableFetcher{
					FetchTableFunc: func(ctx context.Context, ref sheets.Reference) (*table.Table, error) {
						return nil, tt.err
					},
				}
				rec := doRequest(newTestRouter(fetcher), http.MethodPost, path, `{"sheet_url":"abc"}`)

				assert.Equal(t, tt.wantStatus, rec.Code)
				assertNoCache(t, rec)
				assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
				var resp errorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Code)
				assert.NotContains(t, resp.Error, "connection reset")
			})
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := doRequest(newTestRouter(fetcherFor(fruitGrid)), http.MethodGet, "/data", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoversFromPanic(t *testing.T) {
	fetcher := &mockTableFetcher{
		FetchTableFunc: func(ctx context.Context, ref sheets.Reference) (*table.Table, error) {
			panic("boom")
		},
	}
	rec := doRequest(newTestRouter(fetcher), http.MethodPost, "/data", `{"sheet_url":"abc"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Rate.RequestsPerMinute = 2
	h := GetRouter(fetcherFor(fruitGrid), cfg)

	for i := 0; i < 2; i++ {
		rec := doRequest(h, http.MethodGet, "/", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, codeRateLimited, resp.Code)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestSheetRequestReference(t *testing.T) {
	no := false
	tests := []struct {
		name    string
		req     SheetRequest
		want    sheets.Reference
		wantErr bool
	}{
		{"defaults", SheetRequest{SheetURL: " abc "}, sheets.Reference{Locator: "abc", HasHeaders: true}, false},
		{"explicit", SheetRequest{SheetURL: "abc", GID: "3", HasHeaders: &no}, sheets.Reference{Locator: "abc", SheetID: "3"}, false},
		{"missing url", SheetRequest{}, sheets.Reference{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.Reference()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSheetGIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    SheetGID
		wantErr bool
	}{
		{`"123"`, "123", false},
		{`" 9 "`, "9", false},
		{`0`, "0", false},
		{`null`, "", false},
		{`false`, "", true},
		{`[1]`, "", true},
	}
	for _, tt := range tests {
		var g SheetGID
		err := json.Unmarshal([]byte(tt.in), &g)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, g, tt.in)
	}
}

func TestCORSPreflight(t *testing.T) {
	fetcher := fetcherFor(fruitGrid)
	req := httptest.NewRequest(http.MethodOptions, "/data", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()

	newTestRouter(fetcher).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, fetcher.Calls)
}

func TestCORSOnResponse(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/download", strings.NewReader(`{"sheet_url":"abc"}`))
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()

	newTestRouter(fetcherFor(fruitGrid)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := config.Default()
	cfg.Rate.Enabled = false
	cfg.Server.AllowedOrigins = []string{"https://dashboard.example.com"}
	h := GetRouter(fetcherFor(fruitGrid), cfg)

	for origin, want := range map[string]string{
		"https://dashboard.example.com": "https://dashboard.example.com",
		"https://elsewhere.example.org": "",
	} {
		req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, want, rec.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}
