// Package logger provides slog constructors shared by the CLI and the
// library facade.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewDefaultLogger creates a text logger writing to stderr at the given
// level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return New(os.Stderr, level, "text")
}

// New creates a logger with the given output, level, and format
// ("json" or "text").
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog level. Unknown values fall
// back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
