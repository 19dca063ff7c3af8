package clog

import (
	"context"
	"log/slog"
	"slices"
)

// requestAttrsHandler appends the request attribute bag to every record,
// in key order so repeated lines line up.
type requestAttrsHandler struct {
	next slog.Handler
}

func withRequestAttrs(next slog.Handler) slog.Handler {
	return requestAttrsHandler{next: next}
}

func (h requestAttrsHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h requestAttrsHandler) Handle(ctx context.Context, record slog.Record) error {
	attrs := GetAttributes(ctx)
	if len(attrs) == 0 {
		return h.next.Handle(ctx, record)
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		record.AddAttrs(slog.Any(k, attrs[k]))
	}
	return h.next.Handle(ctx, record)
}

func (h requestAttrsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestAttrsHandler{next: h.next.WithAttrs(attrs)}
}

func (h requestAttrsHandler) WithGroup(name string) slog.Handler {
	return requestAttrsHandler{next: h.next.WithGroup(name)}
}
