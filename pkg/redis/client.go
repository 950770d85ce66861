package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-webinar/adstore/pkg/kv"
)

const dialTimeout = 5 * time.Second

// Client is the Redis connection shared by the ad store and the change feed.
// Prefix namespaces every ad key this service writes.
type Client struct {
	*redis.Client
	Prefix string
}

// Options selects the Redis server and key namespace.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewClient connects and pings; a server that does not answer is closed again.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	logger.Info("ad store connected to redis",
		zap.String("addr", opts.Addr), zap.Int("db", opts.DB), zap.String("prefix", opts.Prefix))
	return &Client{Client: rdb, Prefix: opts.Prefix}, nil
}

// Store returns the ad key-value store on this connection.
func (c *Client) Store() *kv.Redis {
	return kv.NewRedis(c.Client, c.Prefix)
}
