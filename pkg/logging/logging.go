// Package logging builds the structured loggers used across tollgate.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a tinted slog logger writing to stderr at the given
// level.
func New(level slog.Level) *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	return slog.New(handler)
}

// Default returns the stderr logger at Info level.
func Default() *slog.Logger {
	return New(slog.LevelInfo)
}
