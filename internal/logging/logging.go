// Package logging builds the process loggers. Protocol frames own stdout,
// so all logs go to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a text logger at the given level ("debug", "info", "warn",
// "error"). Unknown levels fall back to info.
func New(level string) *slog.Logger {
	var l slog.Level

	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// Nop returns a logger that discards all output.
// Use this when you want silent operation with no logging overhead.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
