// Package logging builds the slog loggers used by the commands.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w at level. The returned LevelVar
// adjusts the level at runtime.
func New(level string, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	var lvlVar slog.LevelVar
	lvlVar.Set(ParseLevel(level))

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: &lvlVar})
	return slog.New(handler), &lvlVar
}

// ParseLevel maps a config level name to a slog level. Unknown names are
// info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
