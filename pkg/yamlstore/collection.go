// Package yamlstore persists records as one YAML document per id on top of storage.Storage.
package yamlstore

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/storage"
)

// Collection stores values of T under "<prefix>/<id>.yaml".
type Collection[T any] struct {
	storage storage.Storage
	prefix  string
	kind    string
}

func NewCollection[T any](s storage.Storage, prefix, kind string) *Collection[T] {
	return &Collection[T]{storage: s, prefix: prefix, kind: kind}
}

func (c *Collection[T]) Path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", c.prefix, id)
}

func (c *Collection[T]) Create(ctx context.Context, id string, v *T) error {
	exists, err := c.storage.Exists(ctx, c.Path(id))
	if err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, c.kind, err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("%s already exists", c.kind), nil)
	}
	return c.Put(ctx, id, v)
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("%s not found", c.kind), nil)
	}
	data, err := c.storage.Read(ctx, c.Path(id))
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, c.kind, err)
	}
	return c.decode(data)
}

// Put writes v unconditionally.
func (c *Collection[T]) Put(ctx context.Context, id string, v *T) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal %s: %w", c.kind, err))
	}
	if err := c.storage.Write(ctx, c.Path(id), data); err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, c.kind, err)
	}
	return nil
}

// Update writes v only if a record already exists under id.
func (c *Collection[T]) Update(ctx context.Context, id string, v *T) error {
	exists, err := c.storage.Exists(ctx, c.Path(id))
	if err != nil {
		return cerr.WrapStorageError(cerr.StorageWrite, c.kind, err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("%s not found", c.kind), nil)
	}
	return c.Put(ctx, id, v)
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.storage.Delete(ctx, c.Path(id)); err != nil {
		return cerr.WrapStorageError(cerr.StorageDelete, c.kind, err)
	}
	return nil
}

// Scan reads every record and keeps those accepted by keep (nil keeps all).
// Records deleted between listing and reading are skipped.
func (c *Collection[T]) Scan(ctx context.Context, keep func(*T) bool) ([]*T, error) {
	paths, err := c.storage.List(ctx, c.prefix)
	if err != nil {
		return nil, cerr.WrapStorageError(cerr.StorageRead, c.kind, err)
	}
	var out []*T
	for _, p := range paths {
		data, err := c.storage.Read(ctx, p)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, cerr.WrapStorageError(cerr.StorageRead, c.kind, err)
		}
		v, err := c.decode(data)
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// First returns the first record accepted by match, or NotFound.
func (c *Collection[T]) First(ctx context.Context, match func(*T) bool) (*T, error) {
	all, err := c.Scan(ctx, match)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("%s not found", c.kind), nil)
	}
	return all[0], nil
}

func (c *Collection[T]) decode(data []byte) (*T, error) {
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal %s: %w", c.kind, err))
	}
	return &v, nil
}
