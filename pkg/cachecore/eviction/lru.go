package eviction

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LRU is an exact-recency eviction policy backed by hashicorp's simplelru
// doubly-linked-list tracker. The Store remains the single source of truth
// for entry values; this policy only tracks key order and is consulted by
// the Evictor to name a victim.
type LRU[K comparable] struct {
	mu      sync.Mutex
	tracker *simplelru.LRU[K, struct{}]
}

// NewLRU creates an LRU policy tracking up to capacity keys. capacity
// should match the cache's configured maximum size; it only bounds the
// tracker's own bookkeeping, the Store's actual size is enforced by the
// Evictor invoking SelectVictim in a loop.
func NewLRU[K comparable](capacity int) *LRU[K] {
	if capacity <= 0 {
		capacity = 1
	}
	tracker, _ := simplelru.NewLRU[K, struct{}](capacity, nil)
	return &LRU[K]{tracker: tracker}
}

func (p *LRU[K]) Name() string { return "lru" }

func (p *LRU[K]) OnInsert(key K) {
	p.mu.Lock()
	p.tracker.Add(key, struct{}{})
	p.mu.Unlock()
}

func (p *LRU[K]) OnAccess(key K) {
	p.mu.Lock()
	// Get promotes key to most-recently-used as a side effect.
	p.tracker.Get(key)
	p.mu.Unlock()
}

func (p *LRU[K]) OnRemove(key K) {
	p.mu.Lock()
	p.tracker.Remove(key)
	p.mu.Unlock()
}

// SelectVictim ignores the sampled candidates — the tracker already knows
// the least-recently-used key exactly — and returns the current LRU tail.
func (p *LRU[K]) SelectVictim(_ []Candidate[K]) (K, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, _, ok := p.tracker.GetOldest()
	return key, ok
}
