package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrorLog appends to {dir}/YYYY-MM-DD.log and moves to a new file when the
// date of the entry being written changes.
type ErrorLog struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	name string
	file *os.File
}

// NewErrorLog creates dir if needed. Files are opened on first write.
func NewErrorLog(dir string) (*ErrorLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create error log directory: %w", err)
	}
	return &ErrorLog{dir: dir, now: time.Now}, nil
}

// ErrorLogName returns the daily error log file name for t.
func ErrorLogName(t time.Time) string {
	return t.Format("2006-01-02") + ".log"
}

// Write appends p to the file for the current date.
func (l *ErrorLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := ErrorLogName(l.now())
	if l.file == nil || name != l.name {
		if l.file != nil {
			l.file.Close()
			l.file = nil
		}
		f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, fmt.Errorf("open error log: %w", err)
		}
		l.file = f
		l.name = name
	}
	return l.file.Write(p)
}

// Close releases the current file.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
