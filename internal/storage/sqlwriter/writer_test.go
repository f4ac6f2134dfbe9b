package sqlwriter

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db, string(DialectSQLite), nil))
	return db
}

func TestSQLWriteThenLoadRoundTrips(t *testing.T) {
	db := newTestDB(t)
	w := New[record](db, DialectSQLite, nil)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, "a", record{Name: "alice", N: 1}))
	v, found, err := w.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, record{Name: "alice", N: 1}, v)
}

func TestSQLWriteUpsertsOnConflict(t *testing.T) {
	db := newTestDB(t)
	w := New[record](db, DialectSQLite, nil)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, "a", record{Name: "v1", N: 1}))
	require.NoError(t, w.Write(ctx, "a", record{Name: "v2", N: 2}))

	v, found, err := w.Load(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, record{Name: "v2", N: 2}, v)
}

func TestSQLLoadMissingKeyIsNotAnError(t *testing.T) {
	db := newTestDB(t)
	w := New[record](db, DialectSQLite, nil)

	_, found, err := w.Load(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSQLDelete(t *testing.T) {
	db := newTestDB(t)
	w := New[record](db, DialectSQLite, nil)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, "a", record{Name: "x", N: 1}))
	require.NoError(t, w.Delete(ctx, "a"))

	_, found, err := w.Load(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSQLWriteAllAndLoadAll(t *testing.T) {
	db := newTestDB(t)
	w := New[record](db, DialectSQLite, nil)
	ctx := context.Background()

	entries := map[string]record{"a": {Name: "a", N: 1}, "b": {Name: "b", N: 2}}
	require.NoError(t, w.WriteAll(ctx, entries))

	loaded, err := w.LoadAll(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Equal(t, entries, loaded)
}
