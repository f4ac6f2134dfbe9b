// Package eviction implements pluggable victim-selection policies for the
// cache's background Evictor. A Policy observes entry lifecycle hooks (for
// policies that need ordering state, like LRU and FIFO) and/or samples
// point-in-time metadata snapshots (for stateless policies, like LFU) to
// pick a key to remove when the cache is over capacity.
package eviction

// Candidate is a point-in-time snapshot of an entry's eviction-relevant
// metadata. It mirrors cachecore.Candidate but is declared independently to
// avoid an import cycle between pkg/cachecore and this subpackage.
type Candidate[K comparable] struct {
	Key             K
	AgeNanos        int64
	IdleNanos       int64
	AccessCount     uint64
	HasExpiry       bool
	ExpiresInNanos  int64
}

// Policy selects eviction victims. Implementations must be safe for
// concurrent use: OnInsert/OnAccess/OnRemove are called from the cache's hot
// path, and SelectVictim is called from the background Evictor.
type Policy[K comparable] interface {
	// Name identifies the policy for statistics/logging.
	Name() string

	// OnInsert records that key was newly inserted. Called outside any
	// Store lock.
	OnInsert(key K)

	// OnAccess records that key was read or had its value replaced.
	// Called outside any Store lock.
	OnAccess(key K)

	// OnRemove forgets key, whether removed by the user, expired, or
	// evicted. Called outside any Store lock.
	OnRemove(key K)

	// SelectVictim picks one key to evict given a weakly-consistent
	// sample of current candidates. It returns false if no victim could
	// be selected (e.g. the sample was empty).
	SelectVictim(candidates []Candidate[K]) (K, bool)
}
