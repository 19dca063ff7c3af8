package clog

import (
	"context"
	"maps"
	"sync"
)

const (
	ErrorAttributeKey = "error.message"
	StackAttributeKey = "error.stack"
)

// bag collects attributes while a request is handled. The access log and any
// record logged with the request context pick them up.
type bag struct {
	mu    sync.Mutex
	attrs map[string]any
}

type bagKey struct{}

func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, bagKey{}, &bag{attrs: map[string]any{}})
}

func bagFrom(ctx context.Context) *bag {
	b, _ := ctx.Value(bagKey{}).(*bag)
	return b
}

func AddAttribute(ctx context.Context, key string, value any) {
	if b := bagFrom(ctx); b != nil {
		b.mu.Lock()
		b.attrs[key] = value
		b.mu.Unlock()
	}
}

// AddAttributes merges attributes into the bag; nested maps are merged key by key.
func AddAttributes(ctx context.Context, attributes map[string]any) {
	if b := bagFrom(ctx); b != nil {
		b.mu.Lock()
		merge(b.attrs, attributes)
		b.mu.Unlock()
	}
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

// GetAttributes returns a copy of the request attributes, or nil outside a request.
func GetAttributes(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.attrs)
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			merge(existing, sub)
			continue
		}
		dst[k] = maps.Clone(sub)
	}
}
