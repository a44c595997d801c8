// Package logging builds the logrus loggers used across armtask.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options configures a logger.
type Options struct {
	// Level is a logrus level name. Empty means info.
	Level string
	// Format is "text" or "json". Empty means text.
	Format string
	// Path is a log file. Empty means stderr.
	// Parent directories are created if they don't exist.
	Path string
}

// New creates a logger from opts. The returned closer releases the log file,
// if one was opened.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	if opts.Path == "" {
		logger.SetOutput(os.Stderr)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f, nil
}

// Nop returns a logger that discards everything.
func Nop() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Nop()
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
