package cachecore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache[V any](t *testing.T, opts ...func(*Builder)) *Cache[string, V] {
	t.Helper()
	b := NewConfigBuilder().SweepInterval(0)
	for _, o := range opts {
		o(b)
	}
	cfg, err := b.Build()
	require.NoError(t, err)
	c := New[string, V](cfg, nil, nil)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestPutThenGet(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", 1))
	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

// Scenario 1, spec.md §8: CAS replace miss.
func TestCASReplaceMiss(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "a", 1))

	status, err := c.ReplaceIfEquals(ctx, "a", 2, 3, func(a, b int) bool { return a == b })
	require.NoError(t, err)
	assert.Equal(t, CASFailedEquals, status)
	assert.EqualValues(t, 1, c.Statistics().Hits)

	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

// Scenario 2, spec.md §8: expiry on read.
func TestExpiryOnRead(t *testing.T) {
	c := newTestCache[int](t, func(b *Builder) {
		b.WithExpirationPolicy(ExpirationCreated, 10*time.Millisecond)
	})
	ctx := context.Background()

	var expiredEvents []Event[string, int]
	var mu sync.Mutex
	_, err := c.RegisterCacheEntryListener(ListenerConfig[string, int]{
		Listener: ListenerFunc[string, int](func(e Event[string, int]) {
			mu.Lock()
			defer mu.Unlock()
			expiredEvents = append(expiredEvents, e)
		}),
		EventTypes: []EventType{EventExpired},
	})
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "a", 1))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, expiredEvents, 1)
	assert.Equal(t, EventExpired, expiredEvents[0].Type)
	assert.True(t, expiredEvents[0].HasOld)
	assert.Equal(t, 1, expiredEvents[0].OldValue)
}

// AccessedExpiration is a sliding-window/idle-timeout policy: every read
// must push the expiry back out, not just create/update.
func TestAccessedExpirationSlidesOnRead(t *testing.T) {
	c := newTestCache[int](t, func(b *Builder) {
		b.WithExpirationPolicy(ExpirationAccessed, 30*time.Millisecond)
	})
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", 1))

	// Touch the entry every 15ms, well inside the 30ms TTL, for 45ms; a
	// policy that only honored OnCreate would have let it expire by now.
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		v, ok, err := c.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok, "entry expired despite reads sliding its TTL")
		assert.Equal(t, 1, v)
	}

	time.Sleep(50 * time.Millisecond)
	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "entry should finally expire once reads stop")
}

// Scenario 4, spec.md §8: listener bitmask.
func TestListenerBitmask(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()

	var created atomic.Int64
	id, err := c.RegisterCacheEntryListener(ListenerConfig[string, int]{
		Listener:   ListenerFunc[string, int](func(Event[string, int]) { created.Add(1) }),
		EventTypes: []EventType{EventCreated},
	})
	require.NoError(t, err)

	assert.True(t, c.HasListenerFor(EventCreated))
	assert.False(t, c.HasListenerFor(EventUpdated))

	require.NoError(t, c.Put(ctx, "a", 1))
	assert.EqualValues(t, 1, created.Load())

	require.NoError(t, c.Put(ctx, "a", 2))
	assert.EqualValues(t, 1, created.Load(), "UPDATED must not fire the CREATED-only listener")

	require.NoError(t, c.DeregisterCacheEntryListener(id))
	require.NoError(t, c.Put(ctx, "a", 3))
	assert.EqualValues(t, 1, created.Load())
	assert.False(t, c.HasListenerFor(EventCreated))
}

// Scenario 5, spec.md §8: duplicate registration.
func TestDuplicateListenerRegistration(t *testing.T) {
	c := newTestCache[int](t)
	cfg := ListenerConfig[string, int]{
		ID:       "dup",
		Listener: ListenerFunc[string, int](func(Event[string, int]) {}),
	}
	_, err := c.RegisterCacheEntryListener(cfg)
	require.NoError(t, err)

	_, err = c.RegisterCacheEntryListener(cfg)
	require.Error(t, err)
	var argErr *IllegalArgumentError
	assert.ErrorAs(t, err, &argErr)

	assert.True(t, c.HasListenerFor(EventCreated))
}

// Scenario 6, spec.md §8: putIfAbsent race.
func TestPutIfAbsentRace(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	var createdCount atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			created, err := c.PutIfAbsent(ctx, "k", id)
			require.NoError(t, err)
			if created {
				createdCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, createdCount.Load())
	assert.EqualValues(t, 1, c.Statistics().Puts)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveIfEquals(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "a", 1))

	status, err := c.RemoveIfEquals(ctx, "a", 2, func(a, b int) bool { return a == b })
	require.NoError(t, err)
	assert.Equal(t, CASFailedEquals, status)

	status, err = c.RemoveIfEquals(ctx, "a", 1, func(a, b int) bool { return a == b })
	require.NoError(t, err)
	assert.Equal(t, Removed, status)

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCloseRejectsFurtherOps(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()
	require.NoError(t, c.Close(ctx))
	assert.True(t, c.IsClosed())

	err := c.Put(ctx, "a", 1)
	require.Error(t, err)
	var stateErr *IllegalStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestClearSkipsNotifications(t *testing.T) {
	c := newTestCache[int](t)
	ctx := context.Background()

	var removed atomic.Int64
	_, err := c.RegisterCacheEntryListener(ListenerConfig[string, int]{
		Listener:   ListenerFunc[string, int](func(Event[string, int]) { removed.Add(1) }),
		EventTypes: []EventType{EventRemoved},
	})
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "a", 1))
	require.NoError(t, c.Put(ctx, "b", 2))
	require.NoError(t, c.Clear(ctx))

	assert.EqualValues(t, 0, removed.Load())
	assert.Empty(t, c.Iterator())
}

type stubWriter struct {
	mu      sync.Mutex
	writes  map[string]int
	deletes map[string]bool
	failKey string
}

func newStubWriter() *stubWriter {
	return &stubWriter{writes: map[string]int{}, deletes: map[string]bool{}}
}

func (w *stubWriter) Write(ctx context.Context, key string, value int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if key == w.failKey {
		return assert.AnError
	}
	w.writes[key] = value
	return nil
}

func (w *stubWriter) WriteAll(ctx context.Context, entries map[string]int) error {
	for k, v := range entries {
		if err := w.Write(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (w *stubWriter) Delete(ctx context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deletes[key] = true
	return nil
}

func (w *stubWriter) DeleteAll(ctx context.Context, keys []string) error {
	for _, k := range keys {
		_ = w.Delete(ctx, k)
	}
	return nil
}

func TestWriteThroughFailureDoesNotRollback(t *testing.T) {
	writer := newStubWriter()
	writer.failKey = "a"
	cfg, err := NewConfigBuilder().SweepInterval(0).Build()
	require.NoError(t, err)
	c := New[string, int](cfg, nil, writer)
	defer c.Close(context.Background())
	ctx := context.Background()

	err = c.Put(ctx, "a", 1)
	require.Error(t, err)
	var writeErr *CacheWriterException
	require.ErrorAs(t, err, &writeErr)

	v, ok, getErr := c.Get(ctx, "a")
	require.NoError(t, getErr)
	require.True(t, ok, "store mutation is not rolled back on writer failure")
	assert.Equal(t, 1, v)
}

func TestReadThroughLoader(t *testing.T) {
	loader := loaderFunc[string, int]{
		load: func(ctx context.Context, key string) (int, bool, error) {
			if key == "missing" {
				return 0, false, nil
			}
			return 42, true, nil
		},
		loadAll: func(ctx context.Context, keys []string) (map[string]int, error) {
			out := map[string]int{}
			for _, k := range keys {
				if k != "missing" {
					out[k] = 42
				}
			}
			return out, nil
		},
	}
	cfg, err := NewConfigBuilder().SweepInterval(0).Build()
	require.NoError(t, err)
	c := New[string, int](cfg, loader, nil)
	defer c.Close(context.Background())
	ctx := context.Background()

	v, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

type loaderFunc[K comparable, V any] struct {
	load    func(context.Context, K) (V, bool, error)
	loadAll func(context.Context, []K) (map[K]V, error)
}

func (l loaderFunc[K, V]) Load(ctx context.Context, key K) (V, bool, error) { return l.load(ctx, key) }
func (l loaderFunc[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	return l.loadAll(ctx, keys)
}
