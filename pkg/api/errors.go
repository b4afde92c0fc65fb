package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tablesalive/pkg/logging"
	"tablesalive/pkg/sheets"
)

const (
	codeBadRequest           = "BAD_REQUEST"
	codeSourceUnavailable    = "SOURCE_UNAVAILABLE"
	codeMalformedSource      = "MALFORMED_SOURCE"
	codeStabilizationTimeout = "STABILIZATION_TIMEOUT"
	codeUpstreamError        = "UPSTREAM_ERROR"
	codeRateLimited          = "RATE_LIMITED"
)

// errorStatus maps an acquisition error to its HTTP status, code and client message.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, sheets.ErrSourceUnavailable):
		return http.StatusNotFound, codeSourceUnavailable,
			"sheet not found or not accessible"
	case errors.Is(err, sheets.ErrMalformedSource):
		return http.StatusUnprocessableEntity, codeMalformedSource,
			"sheet did not return CSV data; check the URL and that the sheet is shared publicly"
	case errors.Is(err, sheets.ErrStabilizationTimeout):
		return http.StatusGatewayTimeout, codeStabilizationTimeout,
			"sheet data did not stabilize in time; try again shortly"
	default:
		return http.StatusBadGateway, codeUpstreamError,
			"failed to fetch sheet data"
	}
}

func sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := errorStatus(err)
	logger := logging.FromContext(r.Context()).WithError(err).WithField("code", code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed")
	} else {
		logger.Info("request rejected")
	}
	sendErrorResponse(w, status, code, msg)
}

func sendErrorResponse(w http.ResponseWriter, status int, code, msg string) {
	body, _ := json.Marshal(errorResponse{Error: msg, Code: code})
	sendResponse(w, status, body)
}
