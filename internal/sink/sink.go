// Package sink persists finalized result tables.
//
// A sink receives each table exactly once, at the end of a platform run. The file
// sink writes JSON lines plus a manifest; the SQL sinks create the table on first
// use and insert rows in one transaction, leaving rows that already exist untouched.
// The http sink posts batches to an ingest endpoint.
package sink

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"harvester/internal/config"
	"harvester/internal/credentials"
	"harvester/internal/logger"
	"harvester/internal/models"
)

// ErrInvalidTableName is returned for table names that cannot be used as a file
// name or SQL identifier.
var ErrInvalidTableName = errors.New("invalid table name")

// Sink stores result tables.
type Sink interface {
	Save(ctx context.Context, table *models.Table) error
	Close() error
}

// Options carries what FromConfig needs beyond the sink section.
type Options struct {
	Logger      *logger.Logger
	Credentials credentials.Provider
	Retry       config.RetryPolicy
}

// FromConfig opens the sink selected by cfg.Kind.
func FromConfig(ctx context.Context, cfg config.SinkConfig, opts Options) (Sink, error) {
	log := opts.Logger

	switch cfg.Kind {
	case "", "file":
		return NewFileSink(cfg.Path, log)
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path, log)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN, log)
	case "http":
		creds, err := LoadUploadCredentials(ctx, opts.Credentials)
		if err != nil {
			return nil, err
		}

		return NewUploadSink(UploadOptions{
			Logger:      log,
			Endpoint:    cfg.URL,
			Credentials: creds,
			Retry:       opts.Retry,
			BatchSize:   cfg.BatchSize,
			Concurrency: cfg.Concurrency,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidSinkKind, cfg.Kind)
	}
}

func checkTableName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") || name != filepath.Base(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	return nil
}

// columns returns the column names for t, with the id column renamed to t.IDField.
func columns(t *models.Table) []string {
	cols := make([]string, len(models.Columns))
	copy(cols, models.Columns)

	if t.IDField != "" {
		cols[0] = t.IDField
	}

	return cols
}
