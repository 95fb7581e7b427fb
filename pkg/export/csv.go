package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CSVSink writes a header row of column names followed by one line per row.
type CSVSink struct {
	config Config
	logger zerolog.Logger
}

// NewCSV creates a CSV sink.
func NewCSV(cfg Config) *CSVSink {
	return &CSVSink{
		config: cfg,
		logger: log.With().Str("component", "export-csv").Logger(),
	}
}

// Write implements Sink. Rows go to a temporary file in Dir that is renamed
// into place once complete, so a failed write leaves no partial export.
func (s *CSVSink) Write(ctx context.Context, ds *dataset.Dataset) (path string, err error) {
	if err := os.MkdirAll(s.config.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path = s.config.path("csv")

	f, err := os.CreateTemp(s.config.Dir, ".export-*.csv.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(ds.Columns); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	line := make([]string, len(ds.Columns))
	for i, row := range ds.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		for j, col := range ds.Columns {
			line[j] = cell(row[col])
		}
		if err := w.Write(line); err != nil {
			return "", fmt.Errorf("write row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return "", fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("move export into place: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Int("rows", ds.Len()).
		Int("columns", len(ds.Columns)).
		Msg("CSV export written")
	return path, nil
}
