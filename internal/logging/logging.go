// Package logging builds the logrus loggers used by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level maps a config level name to logrus. Unknown names fall back to info.
func Level(name string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "debug":
		return logrus.DebugLevel
	case "trace":
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// New returns a text logger writing to w.
func New(level logrus.Level, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	return logger
}

// FileLogger opens (appending) the log file at path and returns a logger on
// it. The terminal client uses this so log lines never land on the UI.
// The caller closes the file.
func FileLogger(level logrus.Level, path string) (*os.File, *logrus.Logger, error) {
	if path == "" {
		return nil, New(level, os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := New(level, f)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return f, logger, nil
}
