package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage keeps one file per key under a base directory. Writes land in
// a temp file first and are renamed into place, so readers never see a
// partial record.
type LocalStorage struct {
	base string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage dir %s: %w", baseDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", abs, err)
	}
	return &LocalStorage{base: abs}, nil
}

// file maps a key to its file, refusing keys that would leave the base dir.
func (s *LocalStorage) file(key string) (string, error) {
	rel := filepath.FromSlash(path.Clean(normalize(key)))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	return filepath.Join(s.base, rel), nil
}

func (s *LocalStorage) Read(_ context.Context, key string) ([]byte, error) {
	f, err := s.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *LocalStorage) Write(_ context.Context, key string, data []byte) error {
	f, err := s.file(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f)+".*")
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	f, err := s.file(key)
	if err != nil {
		return err
	}
	err = os.Remove(f)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	case err != nil:
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// List skips subdirectories and in-flight temp files (dot-prefixed).
func (s *LocalStorage) List(_ context.Context, prefix string) ([]string, error) {
	dir, err := s.file(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	children := dirPrefix(prefix)
	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		keys = append(keys, strings.TrimPrefix(children+e.Name(), "/"))
	}
	return keys, nil
}

func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	f, err := s.file(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(f)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return true, nil
}
