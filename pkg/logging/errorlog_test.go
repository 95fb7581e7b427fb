package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestErrorLog_SwitchesFileAtMidnight(t *testing.T) {
	dir := t.TempDir()
	l, err := NewErrorLog(dir)
	if err != nil {
		t.Fatalf("NewErrorLog() error = %v", err)
	}
	defer l.Close()

	clock := time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	logger := zerolog.New(l)
	logger.Error().Msg("first run failed")

	clock = clock.Add(2 * time.Minute)
	logger.Error().Msg("second run failed")

	first, err := os.ReadFile(filepath.Join(dir, "2024-03-05.log"))
	if err != nil {
		t.Fatalf("read first day: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dir, "2024-03-06.log"))
	if err != nil {
		t.Fatalf("read second day: %v", err)
	}

	if !strings.Contains(string(first), "first run failed") || strings.Contains(string(first), "second run failed") {
		t.Errorf("2024-03-05.log = %q", first)
	}
	if !strings.Contains(string(second), "second run failed") || strings.Contains(string(second), "first run failed") {
		t.Errorf("2024-03-06.log = %q", second)
	}
}

func TestErrorLog_NoFileUntilWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "errors")
	l, err := NewErrorLog(dir)
	if err != nil {
		t.Fatalf("NewErrorLog() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty directory, got %d entries", len(entries))
	}
}
