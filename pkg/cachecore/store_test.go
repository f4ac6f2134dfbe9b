package cachecore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeAndClassifyInsertThenReplace(t *testing.T) {
	s := NewStore[string, int]()
	now := time.Now()

	res := s.ComposeAndClassify("a", now, func(cur *Entry[int], exists bool) Decision[int] {
		require.False(t, exists)
		return Insert[int](1, time.Time{})
	})
	assert.Equal(t, Created, res.Status)
	assert.False(t, res.HadPrior)
	assert.Equal(t, 1, res.NewValue)

	res = s.ComposeAndClassify("a", now, func(cur *Entry[int], exists bool) Decision[int] {
		require.True(t, exists)
		return Replace[int](2, time.Time{})
	})
	assert.Equal(t, Changed, res.Status)
	assert.True(t, res.HadPrior)
	assert.Equal(t, 1, res.PriorValue)
	assert.Equal(t, 2, res.NewValue)
}

func TestComposeAndClassifyExpiryFoldedIntoRead(t *testing.T) {
	s := NewStore[string, int]()
	past := time.Now().Add(-time.Hour)

	s.ComposeAndClassify("a", past, func(cur *Entry[int], exists bool) Decision[int] {
		return Insert[int](1, past.Add(time.Millisecond))
	})

	now := time.Now()
	res := s.ComposeAndClassify("a", now, func(cur *Entry[int], exists bool) Decision[int] {
		require.False(t, exists, "mutator must observe absence once the entry has expired")
		return Keep[int]()
	})
	assert.True(t, res.Expired)
	assert.Equal(t, 1, res.ExpiredValue)
	assert.False(t, res.HadPrior)
	assert.Equal(t, Unchanged, res.Status)
}

func TestComposeAndClassifyRemove(t *testing.T) {
	s := NewStore[string, int]()
	now := time.Now()
	s.ComposeAndClassify("a", now, func(cur *Entry[int], exists bool) Decision[int] {
		return Insert[int](1, time.Time{})
	})

	res := s.ComposeAndClassify("a", now, func(cur *Entry[int], exists bool) Decision[int] {
		require.True(t, exists)
		return Remove[int]()
	})
	assert.Equal(t, Removed, res.Status)
	assert.Equal(t, 1, res.PriorValue)
	assert.Equal(t, 0, s.Len())
}

func TestComposeAndClassifyConcurrentPerKeyExclusion(t *testing.T) {
	s := NewStore[string, int]()
	const n = 200
	var wg sync.WaitGroup
	createdCount := int32(0)
	var mu sync.Mutex

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			res := s.ComposeAndClassify("k", time.Now(), func(cur *Entry[int], exists bool) Decision[int] {
				if exists {
					return Keep[int]()
				}
				return Insert[int](id, time.Time{})
			})
			if res.Status == Created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, createdCount)
	assert.Equal(t, 1, s.Len())
}

func TestSweepExpiredRemovesOnlyStale(t *testing.T) {
	s := NewStore[string, int]()
	now := time.Now()
	s.ComposeAndClassify("stale", now, func(cur *Entry[int], exists bool) Decision[int] {
		return Insert[int](1, now.Add(-time.Minute))
	})
	s.ComposeAndClassify("fresh", now, func(cur *Entry[int], exists bool) Decision[int] {
		return Insert[int](2, now.Add(time.Hour))
	})

	expired := s.SweepExpired(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].Key)
	assert.Equal(t, 1, s.Len())
}
