package clog

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

func HTTPStatusToLevel(status int) Level {
	switch {
	case status >= 100 && status < 400:
		return LevelInfo
	case status == 499:
		return LevelInfo
	case status == 402:
		// payment challenges are part of the normal invocation handshake
		return LevelInfo
	case status >= 400 && status < 500:
		return LevelWarn
	case status >= 500:
		return LevelError
	default:
		return LevelError
	}
}

// NewHandler builds the process-wide handler for the given format ("text" or "json").
// The returned handler always copies request-scoped attributes onto records.
func NewHandler(w io.Writer, format string, level slog.Level, colored bool) (slog.Handler, error) {
	var h slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		h = newTextHandler(w, level, colored)
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return withRequestAttrs(h), nil
}
