// Package logging configures logrus and carries request-scoped fields through contexts.
package logging

import (
	"context"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Setup sets the global level ("debug", "info", "warn", "error") and format ("text", "json").
func Setup(level, format string) {
	log.SetLevel(ParseLevel(level))
	if strings.ToLower(format) == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	// Include a leading timestamp in ISO8601 format
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// FromContext returns an entry with the request id set by chi's RequestID
// middleware plus any fields attached with WithFields.
func FromContext(ctx context.Context) *log.Entry {
	entry := log.NewEntry(log.StandardLogger())
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		entry = entry.WithField("request_id", reqID)
	}
	if fields, ok := ctx.Value(ctxKey{}).(log.Fields); ok {
		entry = entry.WithFields(fields)
	}
	return entry
}

// WithFields returns a context whose FromContext entries carry fields.
func WithFields(ctx context.Context, fields log.Fields) context.Context {
	merged := log.Fields{}
	if existing, ok := ctx.Value(ctxKey{}).(log.Fields); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}
