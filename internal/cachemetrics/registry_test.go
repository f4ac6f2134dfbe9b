package cachemetrics

import (
	"sync"
	"testing"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
)

func TestDefaultRegistrySingleton(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry() should return a singleton instance")
	}
}

func TestForCacheIsIdempotentPerName(t *testing.T) {
	r := NewRegistry("cachecore_test_idempotent")
	a := r.ForCache("sessions")
	b := r.ForCache("sessions")
	if a != b {
		t.Error("ForCache with the same name should return the same *CacheMetrics")
	}
	c := r.ForCache("tokens")
	if a == c {
		t.Error("ForCache with different names should return distinct *CacheMetrics")
	}
}

func TestForCacheConcurrentAccess(t *testing.T) {
	r := NewRegistry("cachecore_test_concurrent")
	var wg sync.WaitGroup
	results := make([]*CacheMetrics, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = r.ForCache("shared")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("ForCache returned distinct metrics under concurrent access at index %d", i)
		}
	}
}

func TestSyncOnlyAddsForwardDelta(t *testing.T) {
	r := NewRegistry("cachecore_test_sync")
	m := r.ForCache("delta")

	prev := cachecore.Snapshot{Hits: 5, Misses: 2}
	cur := cachecore.Snapshot{Hits: 9, Misses: 2}
	m.Sync(prev, cur) // should add 4 hits, 0 misses; must not panic on equal counters
}
