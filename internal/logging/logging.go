// Package logging sets up the structured, JSON, slog-based logger used
// throughout the engine. All components log structured fields (path,
// doc_id, stage, duration_ms) rather than free-form strings.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Setup builds a slog.Logger writing JSON to filePath (if non-empty,
// created with parent directories) and to stderr, at the given level.
// It returns the logger and a no-op-safe close function.
func Setup(level, filePath string) (*slog.Logger, func() error, error) {
	var writers []io.Writer
	writers = append(writers, os.Stderr)

	closeFn := func() error { return nil }

	if filePath != "" {
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closeFn = f.Close
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler), closeFn, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Stage returns a logger scoped to one pipeline stage, used so every
// log line in that stage carries a consistent "stage" field.
func Stage(base *slog.Logger, stage string) *slog.Logger {
	return base.With(slog.String("stage", stage))
}
