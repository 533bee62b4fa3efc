package model

import (
	"log/slog"
	"strings"
)

// Severity names as they appear in submission records.
const (
	LevelTrace = "TRACE"
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// LevelTraceSlog and LevelFatalSlog extend slog's levels at both ends.
const (
	LevelTraceSlog = slog.LevelDebug - 4
	LevelFatalSlog = slog.LevelError + 4
)

// EncodeLevel converts a slog level to its severity name.
func EncodeLevel(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return LevelTrace
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	case l < LevelFatalSlog:
		return LevelError
	default:
		return LevelFatal
	}
}

// DecodeLevel converts a severity name to a slog level.
// Unknown names map to INFO.
func DecodeLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case LevelTrace:
		return LevelTraceSlog
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn, "WARNING":
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelFatal:
		return LevelFatalSlog
	default:
		return slog.LevelInfo
	}
}

// NormalizeLevel returns the canonical severity name for s.
func NormalizeLevel(s string) string {
	return EncodeLevel(DecodeLevel(s))
}
