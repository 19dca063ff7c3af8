// Package storage holds the byte-level backends records are persisted to.
// Keys are slash-separated paths such as "skills/01J….yaml"; a leading slash
// is ignored, and List only returns the direct children of a prefix.
package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
)

type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

func normalize(path string) string {
	return strings.TrimPrefix(path, "/")
}

// dirPrefix turns a List prefix into the "dir/" form children start with.
func dirPrefix(prefix string) string {
	return strings.TrimSuffix(normalize(prefix), "/") + "/"
}
