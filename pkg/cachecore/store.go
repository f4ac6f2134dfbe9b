package cachecore

import (
	"fmt"
	"hash/maphash"
	"sync"
	"time"
)

// DecisionKind tags the outcome a Mutator wants applied to a slot.
type DecisionKind int

const (
	// decisionKeep leaves the slot untouched; classified as Unchanged.
	decisionKeep DecisionKind = iota
	// decisionCASMismatch leaves the slot untouched but signals that an
	// expected-value predicate failed; classified as CASFailedEquals.
	decisionCASMismatch
	// decisionInsert installs a brand-new entry; classified as Created.
	decisionInsert
	// decisionReplace overwrites an existing entry's value; classified as
	// Changed.
	decisionReplace
	// decisionRemove drops the slot; classified as Removed.
	decisionRemove
	// decisionTouch leaves the slot's value untouched but recomputes its
	// expiry (per ExpirationPolicy.OnAccess); classified as Unchanged.
	decisionTouch
)

// Decision is returned by a Mutator to tell the Store what to do with the
// slot it was handed.
type Decision[V any] struct {
	kind   DecisionKind
	value  V
	expiry time.Time
}

// Keep declines to mutate the slot.
func Keep[V any]() Decision[V] { return Decision[V]{kind: decisionKeep} }

// CASMismatch declines to mutate the slot because a caller-supplied
// expected-value check failed.
func CASMismatch[V any]() Decision[V] { return Decision[V]{kind: decisionCASMismatch} }

// Insert installs value as a brand-new entry with the given absolute expiry
// (zero Time means never expires).
func Insert[V any](value V, expiry time.Time) Decision[V] {
	return Decision[V]{kind: decisionInsert, value: value, expiry: expiry}
}

// Replace overwrites the current entry's value with value and resets its
// expiry to the given absolute instant (zero Time means never expires).
func Replace[V any](value V, expiry time.Time) Decision[V] {
	return Decision[V]{kind: decisionReplace, value: value, expiry: expiry}
}

// Remove drops the slot entirely.
func Remove[V any]() Decision[V] { return Decision[V]{kind: decisionRemove} }

// Touch leaves the current value in place but recomputes the slot's expiry
// to the given absolute instant (zero Time means never expires), without
// bumping the entry's version. Used by read paths driving
// ExpirationPolicy.OnAccess.
func Touch[V any](expiry time.Time) Decision[V] {
	return Decision[V]{kind: decisionTouch, expiry: expiry}
}

// Mutator is a pure function describing what should happen to a key's slot.
// current is nil when the key is absent (including when it was observed
// expired). The Store calls Mutator exactly once per ComposeAndClassify,
// under the per-key critical section.
type Mutator[V any] func(current *Entry[V], exists bool) Decision[V]

// ComposeResult is the outcome of a single ComposeAndClassify call.
type ComposeResult[V any] struct {
	Status ChangeStatus

	// HadPrior/PriorValue describe the entry observed before the mutator
	// ran (after folding in any just-detected expiry).
	HadPrior   bool
	PriorValue V

	// NewValue is populated for Created/Changed.
	NewValue V

	// Expired is set when the read observed an expiry that had already
	// passed; the caller is responsible for emitting the corresponding
	// EXPIRED notification (with ExpiredValue as the old value) once the
	// per-key critical section has been released, which has already
	// happened by the time ComposeAndClassify returns.
	Expired      bool
	ExpiredValue V
}

// shard is one stripe of the Store's sharded map. Guarding compose
// operations with a per-shard mutex approximates per-key exclusivity
// without the bookkeeping overhead of one lock per key.
type shard[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]*Entry[V]
}

// Store is a concurrent mapping key->Entry with a per-key atomic
// compose-and-classify primitive. At any instant, for each key, the Store
// holds at most one Entry, and a read never returns an entry whose expiry
// has passed.
type Store[K comparable, V any] struct {
	shards []*shard[K, V]
	mask   uint64
	seed   maphash.Seed
}

const defaultShardCount = 64

// NewStore creates a Store with defaultShardCount internal shards. That
// count must stay a power of two, since shardFor selects a shard by masking
// the key's hash.
func NewStore[K comparable, V any]() *Store[K, V] {
	n := defaultShardCount
	shards := make([]*shard[K, V], n)
	for i := range shards {
		shards[i] = &shard[K, V]{data: make(map[K]*Entry[V])}
	}
	return &Store[K, V]{shards: shards, mask: uint64(n - 1), seed: maphash.MakeSeed()}
}

func (s *Store[K, V]) shardFor(key K) *shard[K, V] {
	h := hashAny(s.seed, key)
	return s.shards[h&s.mask]
}

// hashAny hashes an arbitrary comparable key. Generic code cannot hash a
// comparable type parameter directly; string keys (the overwhelmingly
// common case) are hashed without allocation, everything else falls back
// to its fmt representation.
func hashAny[K comparable](seed maphash.Seed, key K) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	if s, ok := any(key).(string); ok {
		h.WriteString(s)
	} else {
		h.WriteString(fmt.Sprintf("%v", key))
	}
	return h.Sum64()
}

// ComposeAndClassify is the Store's single primitive: it executes mutator
// under the key's critical section and returns a classified outcome. The
// critical section is released before this function returns to its caller,
// so no lock is held across the caller's subsequent write-through/notify/
// statistics stages.
func (s *Store[K, V]) ComposeAndClassify(key K, now time.Time, mutator Mutator[V]) ComposeResult[V] {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, exists := sh.data[key]
	var result ComposeResult[V]

	if exists && entry.expired(now) {
		result.Expired = true
		result.ExpiredValue = entry.value
		delete(sh.data, key)
		entry, exists = nil, false
	}

	if exists {
		result.HadPrior = true
		result.PriorValue = entry.value
	}

	decision := mutator(entry, exists)
	switch decision.kind {
	case decisionKeep:
		result.Status = Unchanged
		if exists {
			entry.lastAccessTime = now
			entry.accessCount++
		}
	case decisionCASMismatch:
		result.Status = CASFailedEquals
		if exists {
			entry.lastAccessTime = now
			entry.accessCount++
		}
	case decisionTouch:
		result.Status = Unchanged
		if exists {
			entry.lastAccessTime = now
			entry.accessCount++
			entry.expiryTime = decision.expiry
		}
	case decisionInsert:
		ne := &Entry[V]{
			value:          decision.value,
			creationTime:   now,
			lastAccessTime: now,
			expiryTime:     decision.expiry,
			accessCount:    1,
			version:        1,
		}
		sh.data[key] = ne
		result.Status = Created
		result.NewValue = decision.value
	case decisionReplace:
		if exists {
			entry.value = decision.value
			entry.lastAccessTime = now
			entry.expiryTime = decision.expiry
			entry.version++
			entry.accessCount++
			result.NewValue = decision.value
			result.Status = Changed
		} else {
			// No prior entry to replace: treat as a fresh insert so the
			// pipeline's classification (Created) still matches reality.
			ne := &Entry[V]{
				value:          decision.value,
				creationTime:   now,
				lastAccessTime: now,
				expiryTime:     decision.expiry,
				accessCount:    1,
				version:        1,
			}
			sh.data[key] = ne
			result.NewValue = decision.value
			result.Status = Created
		}
	case decisionRemove:
		if exists {
			delete(sh.data, key)
			result.Status = Removed
		} else {
			result.Status = Unchanged
		}
	}

	return result
}

// Len returns the approximate number of live (possibly including
// not-yet-swept expired) entries in the store.
func (s *Store[K, V]) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.data)
		sh.mu.Unlock()
	}
	return total
}

// Candidate is a point-in-time, weakly-consistent snapshot of an entry's
// eviction-relevant metadata, used by eviction policies and the expiry
// sweeper.
type Candidate[K comparable] struct {
	Key            K
	CreationTime   time.Time
	LastAccessTime time.Time
	AccessCount    uint64
	ExpiryTime     time.Time
}

// Sample returns up to n candidates, taking every entry of each shard in
// shard order until n is reached.
// The snapshot is weakly consistent: entries may be concurrently mutated or
// removed by the time the caller acts on it, which is acceptable per the
// cache's documented Non-goals (approximate eviction, non-linearizable
// iteration).
func (s *Store[K, V]) Sample(n int) []Candidate[K] {
	if n <= 0 {
		return nil
	}
	out := make([]Candidate[K], 0, n)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.data {
			out = append(out, Candidate[K]{
				Key:            k,
				CreationTime:   e.creationTime,
				LastAccessTime: e.lastAccessTime,
				AccessCount:    e.accessCount,
				ExpiryTime:     e.expiryTime,
			})
			if len(out) >= n {
				sh.mu.Unlock()
				return out
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// SweepExpired scans the whole store once, removing any entry whose expiry
// has passed as of now, and returns the removed (key, value) pairs so the
// caller can emit EXPIRED notifications outside of any shard lock.
func (s *Store[K, V]) SweepExpired(now time.Time) []ExpiredPair[K, V] {
	var out []ExpiredPair[K, V]
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.data {
			if e.expired(now) {
				out = append(out, ExpiredPair[K, V]{Key: k, Value: e.value})
				delete(sh.data, k)
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// ExpiredPair is a key/value pair swept by SweepExpired.
type ExpiredPair[K comparable, V any] struct {
	Key   K
	Value V
}

// Iterator returns a weakly-consistent snapshot of all keys currently in
// the store, suitable for the Cache's public iterator. It does not filter
// expired entries; callers performing a Get on a yielded key will correctly
// observe absence if it has since expired.
func (s *Store[K, V]) Iterator() []K {
	keys := make([]K, 0, s.Len())
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k := range sh.data {
			keys = append(keys, k)
		}
		sh.mu.Unlock()
	}
	return keys
}
