package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores values in the kv_store table through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a store backed by pool. The kv_store table must exist (see database.Migrate).
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get returns the value for key.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM kv_store WHERE key = $1`
	var v string
	err := p.pool.QueryRow(ctx, query, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts value under key.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := p.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Update runs fn in a transaction holding an advisory lock on key, so
// concurrent updaters queue behind each other even while the row is absent.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		var cur string
		found := true
		err := tx.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1 FOR UPDATE`, key).Scan(&cur)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
		} else if err != nil {
			return fmt.Errorf("select %s: %w", key, err)
		}
		next, write, err := fn(cur, found)
		if err != nil || !write {
			return err
		}
		const upsert = `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
		if _, err := tx.Exec(ctx, upsert, key, next); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
		return nil
	})
}

// Remove deletes key.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_store WHERE key = $1`
	if _, err := p.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// SQLite stores values in the kv_store table through database/sql.
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a store backed by db. The kv_store table must exist (see database.MigrateSQLite).
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Get returns the value for key.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM kv_store WHERE key = ?`
	var v string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return v, true, nil
}

// Set upserts value under key.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a transaction. SQLite allows one writer at a time,
// so a competing writer either waits on busy_timeout or fails the commit.
func (s *SQLite) Update(ctx context.Context, key string, fn UpdateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cur string
	found := true
	err = tx.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		found, err = false, nil
	} else if err != nil {
		return fmt.Errorf("select %s: %w", key, err)
	}
	next, write, err := fn(cur, found)
	if err != nil {
		return err
	}
	if write {
		const upsert = `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
		if _, err = tx.ExecContext(ctx, upsert, key, next); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_store WHERE key = ?`
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
