package sheets

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"tablesalive/pkg/config"
	"tablesalive/pkg/logging"
	"tablesalive/pkg/table"
)

// Source acquires sheets with the privileged strategy when a ValuesReader is
// configured and through the public CSV export otherwise.
type Source struct {
	reader   ValuesReader
	exporter *Exporter
}

func NewSource(reader ValuesReader, exporter *Exporter) *Source {
	return &Source{
		reader:   reader,
		exporter: exporter,
	}
}

// NewSourceFromConfig builds a Source from cfg. The authenticated API is used
// only when the service account file is configured and present on disk.
func NewSourceFromConfig(ctx context.Context, cfg *config.Config) (*Source, error) {
	stabilizer := NewStabilizer(cfg.Stabilize.Interval.Duration, cfg.Stabilize.Ceiling.Duration)
	exporter := NewExporter(&http.Client{Timeout: cfg.Stabilize.FetchTimeout.Duration}, stabilizer)

	credentials, ok := cfg.Google.PrivilegedCredentials()
	if !ok {
		if cfg.Google.ServiceAccountFile != "" {
			log.Warnf("service account file %s not found, using public export", cfg.Google.ServiceAccountFile)
		}
		return NewSource(nil, exporter), nil
	}

	client, err := NewSheetClient(ctx, option.WithCredentialsFile(credentials))
	if err != nil {
		return nil, err
	}
	log.Infof("using service account credentials from %s", credentials)
	return NewSource(client, exporter), nil
}

// Privileged reports whether reads go through the authenticated API.
func (s *Source) Privileged() bool {
	return s.reader != nil
}

// Acquire returns the raw grid for ref.
func (s *Source) Acquire(ctx context.Context, ref Reference) ([][]string, error) {
	ctx = logging.WithFields(ctx, log.Fields{
		"fetch_id": uuid.NewString(),
		"locator":  ref.Locator,
		"gid":      ref.SheetID,
	})
	logger := logging.FromContext(ctx)
	start := time.Now()

	var (
		grid [][]string
		err  error
	)
	switch {
	case s.reader != nil:
		logger.Debug("reading sheet through the API")
		grid, err = s.reader.ReadValues(ctx, ref.Locator, ref.SheetID)
	case s.exporter != nil:
		logger.Debug("reading sheet through the public export")
		grid, err = s.exporter.Export(ctx, ref)
	default:
		err = newSourceError("open", ref.Locator, errors.New("no acquisition strategy configured"))
	}
	if err != nil {
		logger.WithError(err).Info("sheet acquisition failed")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"rows":        len(grid),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("sheet acquired")
	return grid, nil
}

// FetchTable acquires ref and normalizes it under ref.HasHeaders.
func (s *Source) FetchTable(ctx context.Context, ref Reference) (*table.Table, error) {
	grid, err := s.Acquire(ctx, ref)
	if err != nil {
		return nil, err
	}
	return table.Normalize(grid, ref.HasHeaders), nil
}
