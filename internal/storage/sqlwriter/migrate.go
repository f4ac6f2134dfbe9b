// Package sqlwriter is a reference cachecore.CacheWriter/CacheLoader
// implementation backed by a SQL table, demonstrating write-through
// against a relational store. Grounded on the teacher's
// internal/database/migrations.go goose wiring; the pure-Go
// modernc.org/sqlite driver lets the local CLI demo run without cgo, while
// jackc/pgx/v5 backs the Postgres integration test in test/integration.
package sqlwriter

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending migration to db using the given goose SQL
// dialect ("sqlite3" or "postgres").
func Migrate(ctx context.Context, db *sql.DB, dialect string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("sqlwriter: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("sqlwriter: migrate up: %w", err)
	}
	logger.Info("sqlwriter: migrations applied", "dialect", dialect)
	return nil
}
