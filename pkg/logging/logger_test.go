package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}

	if cfg.ErrorDir != "" {
		t.Error("Expected no error log by default")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		testMsg string
	}{
		{name: "info_level", level: LevelInfo, testMsg: "test info message"},
		{name: "debug_level", level: LevelDebug, testMsg: "test debug message"},
		{name: "warn_level", level: LevelWarn, testMsg: "test warn message"},
		{name: "error_level", level: LevelError, testMsg: "test error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger, closer, err := Setup(Config{Level: tt.level, Output: buf})
			if err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			defer closer.Close()

			switch tt.level {
			case LevelDebug:
				logger.Debug().Msg(tt.testMsg)
			case LevelInfo:
				logger.Info().Msg(tt.testMsg)
			case LevelWarn:
				logger.Warn().Msg(tt.testMsg)
			case LevelError:
				logger.Error().Msg(tt.testMsg)
			}

			if output := buf.String(); !strings.Contains(output, tt.testMsg) {
				t.Errorf("Expected output to contain %q, got %q", tt.testMsg, output)
			}
		})
	}
}

func TestSetup_ErrorDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "errors")
	buf := &bytes.Buffer{}

	logger, closer, err := Setup(Config{Level: LevelInfo, Output: buf, ErrorDir: dir})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info().Msg("fetched endpoint")
	logger.Error().Str("endpoint", "Orders").Msg("fetch failed")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(buf.String(), "fetched endpoint") || !strings.Contains(buf.String(), "fetch failed") {
		t.Errorf("main output missing entries: %q", buf.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, ErrorLogName(time.Now())))
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "fetch failed") || !strings.Contains(content, "Orders") {
		t.Errorf("error log missing error entry: %q", content)
	}
	if strings.Contains(content, "fetched endpoint") {
		t.Errorf("error log should not contain info entries: %q", content)
	}
}

func TestErrorLogName(t *testing.T) {
	got := ErrorLogName(time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC))
	if got != "2024-03-05.log" {
		t.Errorf("ErrorLogName() = %q, want 2024-03-05.log", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	if _, _, err := Setup(Config{Level: LevelInfo, Output: buf}); err != nil {
		t.Fatal(err)
	}

	logger := NewLogger("fetcher")
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "fetcher") {
		t.Errorf("Expected output to contain 'fetcher', got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	if _, _, err := Setup(Config{Level: LevelWarn, Output: buf}); err != nil {
		t.Fatal(err)
	}

	logger := NewLogger("test")

	// These should NOT appear (below warn level)
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	// These SHOULD appear (warn level and above)
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at Warn level")
	}
}
