package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"tablesalive/pkg/logging"
	"tablesalive/pkg/sheets"
	"tablesalive/pkg/table"
)

const maxBodyBytes = 64 << 10

// TableFetcher acquires and normalizes a sheet. *sheets.Source implements it.
type TableFetcher interface {
	FetchTable(ctx context.Context, ref sheets.Reference) (*table.Table, error)
}

type Handler struct {
	fetcher TableFetcher
}

func (h *Handler) getIndex(w http.ResponseWriter, r *http.Request) {
	sendResponse(w, http.StatusOK, []byte(`{"status":"ok"}`))
}

func (h *Handler) postData(w http.ResponseWriter, r *http.Request) {
	t, ok := h.fetchTable(w, r)
	if !ok {
		return
	}
	body, err := json.Marshal(table.Records(t))
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendResponse(w, http.StatusOK, body)
}

func (h *Handler) postAnalyze(w http.ResponseWriter, r *http.Request) {
	t, ok := h.fetchTable(w, r)
	if !ok {
		return
	}
	body, err := json.Marshal(table.Summarize(t))
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendResponse(w, http.StatusOK, body)
}

func (h *Handler) postDownload(w http.ResponseWriter, r *http.Request) {
	t, ok := h.fetchTable(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf, t); err != nil {
		sendError(w, r, err)
		return
	}
	setNoCache(w)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=data.csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// fetchTable decodes the request body and runs the acquisition pipeline. On
// failure it writes the error response and returns false.
func (h *Handler) fetchTable(w http.ResponseWriter, r *http.Request) (*table.Table, bool) {
	ref, err := decodeRequest(r)
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Info("bad request")
		sendErrorResponse(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return nil, false
	}

	ctx := logging.WithFields(r.Context(), log.Fields{"route": r.URL.Path})
	t, err := h.fetcher.FetchTable(ctx, ref)
	if err != nil {
		sendError(w, r, err)
		return nil, false
	}
	logging.FromContext(ctx).WithFields(log.Fields{
		"columns": len(t.Columns),
		"rows":    t.Len(),
	}).Debug("table ready")
	return t, true
}

func decodeRequest(r *http.Request) (sheets.Reference, error) {
	var req SheetRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return sheets.Reference{}, fmt.Errorf("invalid request body: %w", err)
	}
	return req.Reference()
}

func setNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func sendResponse(w http.ResponseWriter, status int, body []byte) {
	setNoCache(w)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
