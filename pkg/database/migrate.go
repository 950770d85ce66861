package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate runs embedded SQL migrations in order (001_kv_store.sql, 002_..., etc.) against PostgreSQL.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations(func(stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
}

// MigrateSQLite runs the same migrations against a SQLite database.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return runMigrations(func(stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

func runMigrations(exec func(stmt string) error) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := exec(string(stmt)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}
	return nil
}
