package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/Sternrassler/odata-export/pkg/dataset"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteSink writes the dataset into a fresh SQLite file as a single table
// of TEXT columns.
type SQLiteSink struct {
	config Config
	logger zerolog.Logger
}

// NewSQLite creates a SQLite sink.
func NewSQLite(cfg Config) *SQLiteSink {
	if cfg.Table == "" {
		cfg.Table = "export"
	}
	return &SQLiteSink{
		config: cfg,
		logger: log.With().Str("component", "export-sqlite").Logger(),
	}
}

// Write implements Sink. The file is removed again if any step fails.
func (s *SQLiteSink) Write(ctx context.Context, ds *dataset.Dataset) (path string, err error) {
	if err := os.MkdirAll(s.config.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path = s.config.path("db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		db.Close()
		if err != nil {
			os.Remove(path)
		}
	}()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTable(s.config.Table, ds.Columns)); err != nil {
		return "", fmt.Errorf("create table %s: %w", s.config.Table, err)
	}

	if len(ds.Columns) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertRow(s.config.Table, ds.Columns))
		if err != nil {
			return "", fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(ds.Columns))
		for i, row := range ds.Rows {
			for j, col := range ds.Columns {
				if row[col] == nil {
					args[j] = nil
					continue
				}
				args[j] = cell(row[col])
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return "", fmt.Errorf("insert row %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Str("table", s.config.Table).
		Int("rows", ds.Len()).
		Int("columns", len(ds.Columns)).
		Msg("SQLite export written")
	return path, nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTable(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " TEXT"
	}
	if len(defs) == 0 {
		defs = []string{"_empty TEXT"}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertRow(table string, columns []string) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quoteIdent(c)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}
