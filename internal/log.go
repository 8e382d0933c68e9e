package internal

import (
	"io"
	"log/slog"
)

func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// CalendarLogger tags every line with the calendar it refers to.
func CalendarLogger(logger *slog.Logger, cal *Calendar) *slog.Logger {
	if cal == nil {
		return logger
	}
	return logger.With("calendar", cal.String())
}

// Discard is a logger for tests and callers that do not care.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
