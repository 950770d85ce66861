// Package kv provides key-value stores that hold string values under string keys.
package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the store refuses a write for lack of space.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Store is a get/set/remove capability over string keys.
// Get reports ok=false for a missing key. Remove of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// ErrConflict is returned by Update when other writers kept changing the key.
var ErrConflict = errors.New("kv: concurrent update conflict")

// UpdateFunc maps the current value (ok=false when absent) to its replacement.
// Returning write=false leaves the key untouched. It may run more than once.
type UpdateFunc func(value string, ok bool) (next string, write bool, err error)

// Updater is implemented by stores that can run a read-modify-write cycle
// atomically with respect to other writers of the same key, including
// writers in other processes.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
