// Package monitoring distributes worker events: it subscribes to the
// error and monitoring channels, classifies what arrives, and fans it out
// to the durable error log, the queryable error store, the recent-events
// window, the alert tracker and the in-process bus.
package monitoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/events"
)

// ErrorLog appends accepted worker errors to a JSON-lines file. Every
// valid ErrorEvent lands here regardless of severity; the SQLite store
// keeps only the subset above the threshold. Each line is the wire event
// itself so the file can be replayed by tooling.
type ErrorLog struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewErrorLog opens (or creates) the error log file for appending.
func NewErrorLog(path string) (*ErrorLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	return &ErrorLog{file: file, path: path}, nil
}

// Append writes one event as a JSON line.
func (l *ErrorLog) Append(event *events.ErrorEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode error event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to error log: %w", err)
	}
	return nil
}

// Path returns the log file location.
func (l *ErrorLog) Path() string {
	return l.path
}

// Rotate renames the current file to a dated sibling and starts a fresh
// one. Returns the rotated path, or "" when the log was empty. The log
// stays usable even when the rename fails.
func (l *ErrorLog) Rotate(suffix string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat error log: %w", err)
	}
	if info.Size() == 0 {
		return "", nil
	}

	if err := l.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close error log: %w", err)
	}

	ext := filepath.Ext(l.path)
	rotated := strings.TrimSuffix(l.path, ext) + "-" + suffix + ext
	renameErr := os.Rename(l.path, rotated)

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to reopen error log: %w", err)
	}
	l.file = file

	if renameErr != nil {
		return "", fmt.Errorf("failed to rotate error log: %w", renameErr)
	}
	return rotated, nil
}

// Close flushes and closes the file.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
