// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ParseLevel maps debug/info/warn/error to a slog level. Unknown names
// mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// FileName is the daily log file name for t.
func FileName(t time.Time) string {
	return "app_" + t.Format("20060102") + ".log"
}

// New returns a text logger writing to stderr and, when dir is set, to
// dir/app_YYYYMMDD.log. The closer releases the file.
func New(level, dir string) (*slog.Logger, io.Closer, error) {
	return newLogger(os.Stderr, level, dir, time.Now())
}

func newLogger(stderr io.Writer, level, dir string, now time.Time) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if dir == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), nopCloser{}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	path := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(io.MultiWriter(stderr, f), opts)), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
