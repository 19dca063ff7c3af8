package clog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// requestColumns are printed first, bare, so access log lines read like
// "GET /api/skills 402".
var requestColumns = []string{"method", "path", "status"}

// textHandler is the human-readable handler used for local development.
// Everything except the request columns, the message and the error goes on
// one indented key=value line; a stack trace goes after it verbatim.
type textHandler struct {
	mu      *sync.Mutex
	w       io.Writer
	level   slog.Leveler
	colored bool
	attrs   []slog.Attr
	prefix  string
}

func newTextHandler(w io.Writer, level slog.Leveler, colored bool) *textHandler {
	return &textHandler{mu: &sync.Mutex{}, w: w, level: level, colored: colored}
}

func (h *textHandler) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if h.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (h *textHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func levelColor(l slog.Level) color.Attribute {
	switch {
	case l >= slog.LevelError:
		return color.FgRed
	case l >= slog.LevelWarn:
		return color.FgYellow
	case l >= slog.LevelInfo:
		return color.FgBlue
	default:
		return color.FgCyan
	}
}

func statusColor(v slog.Value) color.Attribute {
	status := v.Int64()
	switch {
	case status >= 500:
		return color.FgRed
	case status >= 400:
		return color.FgYellow
	default:
		return color.FgGreen
	}
}

func (h *textHandler) Handle(_ context.Context, record slog.Record) error {
	kv := make(map[string]slog.Value, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		kv[a.Key] = a.Value.Resolve()
	}
	record.Attrs(func(a slog.Attr) bool {
		kv[h.prefix+a.Key] = a.Value.Resolve()
		return true
	})

	var buf bytes.Buffer
	h.paint(color.Faint).Fprintf(&buf, "%s ", record.Time.Format(time.TimeOnly))
	h.paint(levelColor(record.Level)).Fprintf(&buf, "%-5s ", record.Level)
	for _, key := range requestColumns {
		v, ok := kv[key]
		if !ok {
			continue
		}
		delete(kv, key)
		if key == "status" && v.Kind() == slog.KindInt64 {
			h.paint(statusColor(v), color.Bold).Fprintf(&buf, "%d ", v.Int64())
			continue
		}
		fmt.Fprintf(&buf, "%s ", v)
	}
	buf.WriteString(record.Message)
	if e, ok := kv[ErrorAttributeKey]; ok {
		delete(kv, ErrorAttributeKey)
		h.paint(color.FgRed).Fprintf(&buf, ": %s", e)
	}
	stack, hasStack := kv[StackAttributeKey]
	delete(kv, StackAttributeKey)
	buf.WriteByte('\n')

	if len(kv) > 0 {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%s", k, kv[k])
		}
		h.paint(color.Faint).Fprintf(&buf, "    %s\n", strings.Join(pairs, " "))
	}
	if hasStack {
		buf.WriteString(stack.String())
		if !strings.HasSuffix(stack.String(), "\n") {
			buf.WriteByte('\n')
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}
