package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	// Each ad request holds a connection for one short statement or one
	// locked read-modify-write, so a small pool is enough.
	maxConns        = 4
	maxConnIdleTime = 5 * time.Minute
)

// NewPostgresPool opens the pool holding the kv_store table and pings it.
func NewPostgresPool(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MaxConnIdleTime = maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", cfg.ConnConfig.Host, err)
	}

	logger.Info("ad store connected to postgres",
		zap.String("host", cfg.ConnConfig.Host), zap.String("database", cfg.ConnConfig.Database))
	return pool, nil
}
