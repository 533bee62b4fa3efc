package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Namespace prefixes the logger name of every diagnostic logger, so the
// handler can recognize and drop its own output.
const Namespace = "rplog"

// Init creates and sets the package-level default slog logger on stderr.
func Init(level slog.Level, json bool) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, level, json)))
}

// NewHandler returns a text or JSON handler writing to w.
func NewHandler(w io.Writer, level slog.Level, json bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
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

// Internal returns the default logger tagged as component of this module.
func Internal(component string) *slog.Logger {
	return With(slog.Default(), component)
}

// With tags base as component of this module.
func With(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("logger", Namespace+"."+component)
}
