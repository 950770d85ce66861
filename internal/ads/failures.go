package ads

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type failuresKey struct{}

type failure struct {
	op  string
	err error
}

// Failures collects storage errors the repository absorbed while serving
// one logical call chain. It lets a caller that cares (the HTTP layer)
// react to a failed save without changing the repository's fail-open contract.
type Failures struct {
	mu   sync.Mutex
	list []failure
}

// TrackFailures returns a context on which repository failures are recorded.
func TrackFailures(ctx context.Context) (context.Context, *Failures) {
	f := &Failures{}
	return context.WithValue(ctx, failuresKey{}, f), f
}

func failuresFrom(ctx context.Context) *Failures {
	f, _ := ctx.Value(failuresKey{}).(*Failures)
	return f
}

func (f *Failures) add(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, failure{op: op, err: err})
}

// Err joins every recorded failure, or returns nil.
func (f *Failures) Err() error {
	return f.join(func(string) bool { return true })
}

// StorageErr joins failures of the store itself, leaving out malformed data
// (which a mutation simply replaces).
func (f *Failures) StorageErr() error {
	return f.join(func(op string) bool { return op != opDecode })
}

func (f *Failures) join(match func(op string) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, fl := range f.list {
		if match(fl.op) {
			errs = append(errs, fmt.Errorf("%s: %w", fl.op, fl.err))
		}
	}
	return errors.Join(errs...)
}
