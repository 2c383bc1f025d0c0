package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger builds the service-wide JSON logger and installs it as the
// slog default, so package-level logging (access logs, connection handlers)
// shares the same handler and carries the service attribute.
func NewJSONLogger(service, level string) *slog.Logger {
	logger := NewJSONLoggerTo(os.Stdout, service, level)
	slog.SetDefault(logger)
	return logger
}

// NewJSONLoggerTo writes to an explicit sink and leaves the process default
// alone. Tests pass a buffer.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// parseLevel is forgiving: an unknown level falls back to info rather than
// failing startup over a typo in LOG_LEVEL.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
