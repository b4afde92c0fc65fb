package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var (
	spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	spreadsheetIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// SheetClient reads sheets through the Google Sheets API. Create one per
// process; it authenticates once and is safe for concurrent use.
type SheetClient struct {
	service *sheets.Service
}

// NewSheetClient builds a read-only client, typically with option.WithCredentialsFile.
func NewSheetClient(ctx context.Context, opts ...option.ClientOption) (*SheetClient, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}, opts...)
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets client: %w", err)
	}
	return &SheetClient{service: srv}, nil
}

// SpreadsheetID extracts the document id from an editor URL or accepts a bare id.
func SpreadsheetID(locator string) (string, error) {
	if m := spreadsheetURLPattern.FindStringSubmatch(locator); m != nil {
		return m[1], nil
	}
	if spreadsheetIDPattern.MatchString(locator) {
		return locator, nil
	}
	return "", fmt.Errorf("%w: no spreadsheet id in %q", ErrSourceUnavailable, locator)
}

// ReadValues returns the rendered cell grid of the sheet whose id is sheetID,
// or of the first sheet when sheetID is empty. Rows are padded with empty
// strings to the widest row since the API omits trailing blanks.
func (s *SheetClient) ReadValues(ctx context.Context, locator, sheetID string) ([][]string, error) {
	id, err := SpreadsheetID(locator)
	if err != nil {
		return nil, newSourceError("open", locator, err)
	}

	// 1. Get spreadsheet metadata
	ss, err := s.service.Spreadsheets.Get(id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError("open", locator, err)
	}

	// 2. Pick the sheet
	var title string
	found := false
	for _, sh := range ss.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		if sheetID == "" || strconv.FormatInt(sh.Properties.SheetId, 10) == sheetID {
			title = sh.Properties.Title
			found = true
			break
		}
	}
	if !found {
		if sheetID == "" {
			return nil, newSourceError("open", locator, fmt.Errorf("%w: spreadsheet has no sheets", ErrSourceUnavailable))
		}
		return nil, newSourceError("open", locator, fmt.Errorf("%w: worksheet with gid %s not found", ErrSourceUnavailable, sheetID))
	}

	// 3. Read every value
	resp, err := s.service.Spreadsheets.Values.Get(id, quoteSheetTitle(title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, classifyAPIError("read", locator, err)
	}
	return toGrid(resp.Values), nil
}

func quoteSheetTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toGrid(values [][]interface{}) [][]string {
	width := 0
	for _, row := range values {
		if len(row) > width {
			width = len(row)
		}
	}
	grid := make([][]string, len(values))
	for i, row := range values {
		out := make([]string, width)
		for j, cell := range row {
			switch v := cell.(type) {
			case string:
				out[j] = v
			case nil:
			default:
				out[j] = fmt.Sprint(v)
			}
		}
		grid[i] = out
	}
	return grid
}

func classifyAPIError(op, locator string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return newSourceError(op, locator, fmt.Errorf("%w: %s", ErrSourceUnavailable, gErr.Message))
		}
	}
	return newSourceError(op, locator, err)
}
