package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-webinar/adstore/config"
	"github.com/aura-webinar/adstore/pkg/database"
	"github.com/aura-webinar/adstore/pkg/kv"
	"github.com/aura-webinar/adstore/pkg/redis"
	"github.com/aura-webinar/adstore/pkg/storage"
)

// backend is the opened key-value store plus what main needs to shut it down.
type backend struct {
	store kv.Store
	redis *redis.Client // set for backend=redis; reused for the change feed
	close func()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return &backend{store: kv.NewMemory(cfg.Storage.MemoryQuotaBytes), close: func() {}}, nil

	case config.BackendFile:
		f, err := kv.NewFile(cfg.Storage.FileDir)
		if err != nil {
			return nil, err
		}
		return &backend{store: f, close: func() {}}, nil

	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &backend{
			store: rdb.Store(),
			redis: rdb,
			close: func() { _ = rdb.Close() },
		}, nil

	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &backend{store: kv.NewPostgres(pool), close: pool.Close}, nil

	case config.BackendSQLite:
		db, err := database.NewSQLite(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &backend{store: kv.NewSQLite(db), close: func() { _ = db.Close() }}, nil

	case config.BackendS3:
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &backend{store: kv.NewS3(client, cfg.AWS.Bucket, cfg.AWS.Prefix), close: func() {}}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
