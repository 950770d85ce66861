package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// File stores each key as a file under dir. Readers and writers in other
// processes are serialized with an advisory lock file next to the value.
type File struct {
	dir string
}

// NewFile creates dir if needed and returns a store rooted there.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

func (f *File) lock(ctx context.Context, path string, shared bool) (*flock.Flock, error) {
	fl := flock.New(path + ".lock")
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("lock %s: not acquired", path)
	}
	return fl, nil
}

// Get reads the value stored under key.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	p := f.path(key)
	fl, err := f.lock(ctx, p, true)
	if err != nil {
		return "", false, err
	}
	defer fl.Unlock()
	return f.read(p, key)
}

func (f *File) read(p, key string) (string, bool, error) {
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(b), true, nil
}

// Set writes value to a temp file and renames it over the previous value,
// so a failed write leaves the old value in place.
func (f *File) Set(ctx context.Context, key, value string) error {
	p := f.path(key)
	fl, err := f.lock(ctx, p, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()
	return f.write(p, key, value)
}

// Update holds the exclusive lock across the read and the write.
func (f *File) Update(ctx context.Context, key string, fn UpdateFunc) error {
	p := f.path(key)
	fl, err := f.lock(ctx, p, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	cur, ok, err := f.read(p, key)
	if err != nil {
		return err
	}
	next, write, err := fn(cur, ok)
	if err != nil || !write {
		return err
	}
	return f.write(p, key, next)
}

func (f *File) write(p, key, value string) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Remove deletes the file for key.
func (f *File) Remove(ctx context.Context, key string) error {
	p := f.path(key)
	fl, err := f.lock(ctx, p, false)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
