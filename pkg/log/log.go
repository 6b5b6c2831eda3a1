// Package log configures the process-wide slog default used by the API and
// worker binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on stderr at the requested level. Unknown
// level names fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule derives a logger tagged with the component name, the attribute
// every log line in this codebase carries.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
