package cachecore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 3, spec.md §8: eviction forceAsync. A synchronous listener must
// still receive the REMOVED event via the async path when the Evictor, not
// a user op, produced it — so put("c",3) never blocks on the listener.
func TestEvictionForceAsync(t *testing.T) {
	cfg, err := NewConfigBuilder().
		MaxEntries(2).
		WithEvictionPolicy(EvictionFIFO).
		SweepInterval(5 * time.Millisecond).
		Build()
	require.NoError(t, err)
	c := New[string, int](cfg, nil, nil)
	defer c.Close(context.Background())
	ctx := context.Background()

	var mu sync.Mutex
	var removedEvents []Event[string, int]
	blockListener := make(chan struct{})

	_, err = c.RegisterCacheEntryListener(ListenerConfig[string, int]{
		Listener: ListenerFunc[string, int](func(e Event[string, int]) {
			<-blockListener // simulate a slow synchronous listener
			mu.Lock()
			removedEvents = append(removedEvents, e)
			mu.Unlock()
		}),
		EventTypes: []EventType{EventRemoved},
		Mode:       DispatchSync,
	})
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "a", 1))
	require.NoError(t, c.Put(ctx, "b", 2))

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, c.Put(ctx, "c", 3))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("put(\"c\",3) blocked on the slow listener; eviction must force async delivery")
	}

	close(blockListener)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(removedEvents) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestEvictorLazySweepEmitsExpired(t *testing.T) {
	cfg, err := NewConfigBuilder().
		WithExpirationPolicy(ExpirationCreated, 5*time.Millisecond).
		SweepInterval(5 * time.Millisecond).
		Build()
	require.NoError(t, err)
	c := New[string, int](cfg, nil, nil)
	defer c.Close(context.Background())
	ctx := context.Background()

	var expiredCount int
	var mu sync.Mutex
	_, err = c.RegisterCacheEntryListener(ListenerConfig[string, int]{
		Listener: ListenerFunc[string, int](func(Event[string, int]) {
			mu.Lock()
			expiredCount++
			mu.Unlock()
		}),
		EventTypes: []EventType{EventExpired},
	})
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "a", 1))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return expiredCount == 1
	}, time.Second, 5*time.Millisecond)

	assert.EqualValues(t, 1, c.Statistics().Expirations)
}
