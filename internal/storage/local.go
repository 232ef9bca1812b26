package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalBackend stores each entry as one file in a directory.
type LocalBackend struct {
	dir string
}

// NewLocalBackend creates dir if needed.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating storage directory %s: %w", dir, err)
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) Dir() string { return b.dir }

// Put writes to a temporary file in the same directory and renames it over
// the target so readers never observe a partially written entry.
func (b *LocalBackend) Put(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed creating temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed closing %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(b.dir, name)); err != nil {
		cleanup()
		return fmt.Errorf("failed committing %s: %w", name, err)
	}
	return nil
}

func (b *LocalBackend) Get(ctx context.Context, name string) ([]byte, bool, error) {
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(filepath.Join(b.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed reading %s: %w", name, err)
	}
	return data, true, nil
}

func (b *LocalBackend) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(b.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed removing %s: %w", name, err)
	}
	return nil
}

func (b *LocalBackend) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(b.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed checking %s: %w", name, err)
	}
	return info.Mode().IsRegular(), nil
}

// List returns regular, non-hidden files ending in suffix, sorted by name.
func (b *LocalBackend) List(ctx context.Context, suffix string) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed listing %s: %w", b.dir, err)
	}

	results := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		results = append(results, ObjectInfo{Key: name, Size: info.Size()})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

var _ Backend = (*LocalBackend)(nil)
