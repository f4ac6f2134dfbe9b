package sqlwriter

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Dialect names the SQL upsert syntax a Writer should emit.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Writer is a string-keyed, JSON-valued CacheWriter/CacheLoader backed by
// the cache_entries table created by Migrate.
type Writer[V any] struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps an already-migrated *sql.DB.
func New[V any](db *sql.DB, dialect Dialect, logger *slog.Logger) *Writer[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer[V]{db: db, dialect: dialect, logger: logger}
}

func (w *Writer[V]) upsertQuery() string {
	switch w.dialect {
	case DialectPostgres:
		return `INSERT INTO cache_entries (cache_key, value_json, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (cache_key) DO UPDATE SET value_json = EXCLUDED.value_json, updated_at = EXCLUDED.updated_at`
	default:
		return `INSERT INTO cache_entries (cache_key, value_json, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(cache_key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at`
	}
}

func (w *Writer[V]) deleteQuery() string {
	if w.dialect == DialectPostgres {
		return `DELETE FROM cache_entries WHERE cache_key = $1`
	}
	return `DELETE FROM cache_entries WHERE cache_key = ?`
}

func (w *Writer[V]) selectQuery() string {
	if w.dialect == DialectPostgres {
		return `SELECT value_json FROM cache_entries WHERE cache_key = $1`
	}
	return `SELECT value_json FROM cache_entries WHERE cache_key = ?`
}

// Write upserts key's JSON-encoded value.
func (w *Writer[V]) Write(ctx context.Context, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlwriter: marshal: %w", err)
	}
	if _, err := w.db.ExecContext(ctx, w.upsertQuery(), key, string(data), time.Now().UTC()); err != nil {
		w.logger.Error("sqlwriter: write failed", "key", key, "error", err)
		return fmt.Errorf("sqlwriter: upsert: %w", err)
	}
	return nil
}

// WriteAll upserts every entry inside a single transaction.
func (w *Writer[V]) WriteAll(ctx context.Context, entries map[string]V) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlwriter: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, w.upsertQuery())
	if err != nil {
		return fmt.Errorf("sqlwriter: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, value := range entries {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("sqlwriter: marshal %q: %w", key, err)
		}
		if _, err := stmt.ExecContext(ctx, key, string(data), now); err != nil {
			return fmt.Errorf("sqlwriter: upsert %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Delete removes key. Deleting an absent key is not an error.
func (w *Writer[V]) Delete(ctx context.Context, key string) error {
	if _, err := w.db.ExecContext(ctx, w.deleteQuery(), key); err != nil {
		return fmt.Errorf("sqlwriter: delete: %w", err)
	}
	return nil
}

// DeleteAll removes every key given, in a single transaction.
func (w *Writer[V]) DeleteAll(ctx context.Context, keys []string) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlwriter: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, w.deleteQuery())
	if err != nil {
		return fmt.Errorf("sqlwriter: prepare: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, key); err != nil {
			return fmt.Errorf("sqlwriter: delete %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// Load reads back a key previously written by Write. A missing row is
// reported as (zero, false, nil).
func (w *Writer[V]) Load(ctx context.Context, key string) (V, bool, error) {
	var zero V
	var raw string
	err := w.db.QueryRowContext(ctx, w.selectQuery(), key).Scan(&raw)
	if err == sql.ErrNoRows {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("sqlwriter: select: %w", err)
	}
	var value V
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return zero, false, fmt.Errorf("sqlwriter: unmarshal: %w", err)
	}
	return value, true, nil
}

// LoadAll loads a batch of keys, skipping misses.
func (w *Writer[V]) LoadAll(ctx context.Context, keys []string) (map[string]V, error) {
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		v, found, err := w.Load(ctx, k)
		if err != nil {
			return nil, err
		}
		if found {
			out[k] = v
		}
	}
	return out, nil
}
