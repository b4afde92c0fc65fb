package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"tablesalive/pkg/sheets"
)

// SheetRequest is the body accepted by /data, /analyze and /download.
type SheetRequest struct {
	SheetURL   string   `json:"sheet_url"`
	GID        SheetGID `json:"gid"`
	HasHeaders *bool    `json:"has_headers"`
}

// SheetGID accepts a gid given as a JSON string, number or null.
type SheetGID string

func (g *SheetGID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*g = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = SheetGID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("gid must be a string or number")
		}
		*g = SheetGID(n.String())
	}
	return nil
}

// Reference validates the request and converts it for the acquisition layer.
// has_headers defaults to true.
func (req SheetRequest) Reference() (sheets.Reference, error) {
	locator := strings.TrimSpace(req.SheetURL)
	if locator == "" {
		return sheets.Reference{}, fmt.Errorf("sheet_url is required")
	}
	hasHeaders := true
	if req.HasHeaders != nil {
		hasHeaders = *req.HasHeaders
	}
	return sheets.Reference{
		Locator:    locator,
		SheetID:    string(req.GID),
		HasHeaders: hasHeaders,
	}, nil
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
