// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// ErrorDir, when set, receives a copy of error-level entries in a
	// daily file named YYYY-MM-DD.log.
	ErrorDir string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the global zerolog logger. The returned Closer releases
// the error log file, if any.
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	var closer io.Closer = nopCloser{}
	if cfg.ErrorDir != "" {
		errLog, err := NewErrorLog(cfg.ErrorDir)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		closer = errLog
		output = zerolog.MultiLevelWriter(output, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: errLog},
			Level:  zerolog.ErrorLevel,
		})
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger, closer, nil
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key)
//   - Per-request completion (chunk, pages, rows)
//   - Each applied transform step
//
// Info: Normal operation events
//   - Pipeline start and completion
//   - Rows fetched per endpoint
//   - Export written (path, rows, columns)
//   - Scheduler and metrics server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Credential rejected, token refresh
//   - Cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Token acquisition failures
//   - Failed fetches (second 401, non-auth HTTP errors, malformed pages)
//   - Aborted pipeline runs
//   - Configuration errors
//
// Context Fields:
//   - run_id: Pipeline run identifier
//   - endpoint: Endpoint name
//   - url: Request URL
//   - status: HTTP status code
//   - error_class: Error classification (auth, client, server, network, decode)
//   - chunk: Chunk index of a keyed request
//   - page: Page index within a request
//   - rows: Row count
//   - dataset: Dataset name
//   - op: Transform operation
