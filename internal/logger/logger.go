// Package logger holds the heapctl process logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// L is the global logger instance. It discards all output until Init enables it.
var L = slog.New(slog.DiscardHandler)

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	JSON    bool       // JSON records instead of text
	Level   slog.Level // Minimum level
	Out     io.Writer  // Destination. Default: os.Stderr
}

// Init configures logging. Call before any log calls.
func Init(opts Options) *slog.Logger {
	if !opts.Enabled {
		L = slog.New(slog.DiscardHandler)
		return L
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(out, ho))
	} else {
		L = slog.New(slog.NewTextHandler(out, ho))
	}
	return L
}
