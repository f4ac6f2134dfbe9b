//go:build integration
// +build integration

package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vitaliisemenov/cachecore/internal/storage/sqlwriter"
)

type cachedValue struct {
	Payload string `json:"payload"`
}

func TestSQLWriterAgainstRealPostgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("cachecore_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlwriter.Migrate(ctx, db, string(sqlwriter.DialectPostgres), nil))

	w := sqlwriter.New[cachedValue](db, sqlwriter.DialectPostgres, nil)

	require.NoError(t, w.Write(ctx, "k1", cachedValue{Payload: "hello"}))
	v, found, err := w.Load(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hello", v.Payload)

	require.NoError(t, w.Write(ctx, "k1", cachedValue{Payload: "updated"}))
	v, found, err = w.Load(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "updated", v.Payload)

	require.NoError(t, w.Delete(ctx, "k1"))
	_, found, err = w.Load(ctx, "k1")
	require.NoError(t, err)
	require.False(t, found)
}
