// Package logging provides the application logger. It wraps log/slog so call
// sites can pass structured key/value pairs alongside the message.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the structured logger used across the studio server.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger writing text-formatted records to stdout.
func NewLogger() *Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to w. Tests use this with a
// buffer or io.Discard.
func NewLoggerWithWriter(w io.Writer) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(w, nil))}
}
