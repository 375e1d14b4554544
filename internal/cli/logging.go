package cli

import (
	"fmt"
	"io"
	"log/slog"
)

// NewLogger builds the CLI logger. The level starts at warn; each -v
// lowers it one step (info, then debug) and quiet raises it to error.
func NewLogger(w io.Writer, verbose int, quiet bool, format string) (*slog.Logger, error) {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose == 1:
		level = slog.LevelInfo
	case verbose >= 2:
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
