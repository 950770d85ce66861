package kv

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updatableStore interface {
	Store
	Updater
}

func increment(v string, ok bool) (string, bool, error) {
	if !ok {
		return "1", true, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return "", false, err
	}
	return strconv.Itoa(n + 1), true, nil
}

// exerciseUpdater runs the contract every Updater must satisfy.
func exerciseUpdater(t *testing.T, s updatableStore) {
	t.Helper()
	ctx := context.Background()
	const key = "site_ads_v1"

	require.NoError(t, s.Update(ctx, key, func(_ string, ok bool) (string, bool, error) {
		assert.False(t, ok)
		return "", false, nil
	}))
	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "write=false must not create the key")

	require.NoError(t, s.Set(ctx, key, "0"))
	boom := errors.New("boom")
	err = s.Update(ctx, key, func(string, bool) (string, bool, error) { return "x", true, boom })
	assert.ErrorIs(t, err, boom)
	v, _, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "0", v, "failed update must leave the value")

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, key, increment))
		}()
	}
	wg.Wait()
	v, _, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers), v, "no increment may be lost")
}
