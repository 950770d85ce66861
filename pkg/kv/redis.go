package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// maxWatchRetries bounds how often Update restarts after a WATCH conflict.
const maxWatchRetries = 16

// watcher is satisfied by *redis.Client and *redis.ClusterClient.
type watcher interface {
	Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error
}

// Redis stores values as plain Redis strings under prefix+key.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis returns a store backed by client.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Get returns the value for key; redis.Nil maps to ok=false.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value without expiry. A maxmemory rejection is reported as ErrQuotaExceeded.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return setErr(key, r.client.Set(ctx, r.prefix+key, value, 0).Err())
}

func setErr(key string, err error) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return fmt.Errorf("redis set %s: %w", key, err)
}

// Update runs fn inside WATCH/MULTI/EXEC and restarts when another client
// changed the key before EXEC. The client must support WATCH.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	w, ok := r.client.(watcher)
	if !ok {
		return fmt.Errorf("redis update %s: client does not support WATCH", key)
	}
	k := r.prefix + key
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			found = false
		} else if err != nil {
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		next, write, err := fn(cur, found)
		if err != nil || !write {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			return err
		}
		return setErr(key, err)
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := w.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis update %s: %w", key, ErrConflict)
}

// Remove deletes key.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
