// Package export writes the formatted table to a file artifact.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Sternrassler/odata-export/pkg/config"
	"github.com/Sternrassler/odata-export/pkg/dataset"
)

// TimestampLayout stamps export file names.
const TimestampLayout = "20060102_150405"

// Sink writes a dataset and returns the path of the written artifact.
type Sink interface {
	Write(ctx context.Context, ds *dataset.Dataset) (string, error)
}

// Config holds sink settings.
type Config struct {
	Dir    string
	Prefix string

	// Table names the SQLite table.
	Table string

	// Now stamps file names (default: time.Now).
	Now func() time.Time
}

func (c Config) path(ext string) string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return filepath.Join(c.Dir, FileName(c.Prefix, ext, now()))
}

// FileName returns {prefix}_{YYYYMMDD_HHMMSS}.{ext}.
func FileName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(TimestampLayout), ext)
}

// New returns the sink for the configured format.
func New(cfg config.Export) (Sink, error) {
	c := Config{Dir: cfg.Dir, Prefix: cfg.Prefix, Table: cfg.Table}
	switch cfg.Format {
	case config.FormatCSV, "":
		return NewCSV(c), nil
	case config.FormatSQLite:
		return NewSQLite(c), nil
	default:
		return nil, &config.ConfigError{Field: "export.format", Reason: fmt.Sprintf("unsupported format %q", cfg.Format)}
	}
}

// cell renders a value for a text export; null is empty.
func cell(v any) string {
	s, _ := dataset.Stringify(v)
	return s
}
