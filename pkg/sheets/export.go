package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"tablesalive/pkg/logging"
)

// Exporter reads public sheets through the CSV export endpoint. The endpoint
// may serve a snapshot that is still catching up with recent edits, so every
// read goes through the Stabilizer.
type Exporter struct {
	client     *http.Client
	stabilizer *Stabilizer
}

// NewExporter uses client for each fetch; client.Timeout bounds a single fetch.
func NewExporter(client *http.Client, stabilizer *Stabilizer) *Exporter {
	return &Exporter{
		client:     client,
		stabilizer: stabilizer,
	}
}

// ExportURL turns an editor link into its CSV export link.
func ExportURL(locator, sheetID string) string {
	base := locator
	for _, cut := range []string{"/edit", "?", "#"} {
		if i := strings.Index(base, cut); i >= 0 {
			base = base[:i]
		}
	}
	base = strings.TrimRight(base, "/")

	u := base + "/export?format=csv"
	if sheetID != "" {
		u += "&gid=" + url.QueryEscape(sheetID)
	}
	return u
}

// Export returns a stabilized raw grid for ref.
func (e *Exporter) Export(ctx context.Context, ref Reference) ([][]string, error) {
	exportURL := ExportURL(ref.Locator, ref.SheetID)
	grid, err := e.stabilizer.Run(ctx, func(ctx context.Context) ([][]string, error) {
		return e.fetch(ctx, exportURL)
	})
	if err != nil {
		var srcErr *SourceError
		if errors.As(err, &srcErr) {
			return nil, err
		}
		return nil, newSourceError("export", ref.Locator, err)
	}
	return grid, nil
}

func (e *Exporter) fetch(ctx context.Context, exportURL string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, newSourceError("export", exportURL, fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
	}
	req.Header.Set("Accept", "text/csv")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, newSourceError("export", exportURL,
			fmt.Errorf("%w: status %d", ErrSourceUnavailable, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("export request: status %d", resp.StatusCode)
	}

	// Private sheets redirect to an HTML sign-in page instead of failing.
	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mt == "text/html" {
		return nil, newSourceError("export", exportURL,
			fmt.Errorf("%w: got an HTML page, the sheet may be private or the URL invalid", ErrMalformedSource))
	}

	grid, skipped, err := parseCSV(resp.Body)
	if err != nil {
		return nil, newSourceError("export", exportURL, err)
	}
	if skipped > 0 {
		logging.FromContext(ctx).Debugf("skipped %d malformed lines", skipped)
	}
	return grid, nil
}

// parseCSV reads every record, skipping those that fail to parse. It fails
// only when nothing at all could be read from a non-empty body.
func parseCSV(r io.Reader) ([][]string, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	grid := [][]string{}
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read export: %w", err)
		}
		grid = append(grid, rec)
	}

	if len(grid) == 0 && skipped > 0 {
		return nil, skipped, fmt.Errorf("%w: no readable lines, the sheet may be private or the URL invalid", ErrMalformedSource)
	}
	return grid, skipped, nil
}
