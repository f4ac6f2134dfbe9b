package cachecore

import (
	"log/slog"
	"time"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore/eviction"
)

// evictorConfig bundles what the Evictor needs from the owning Cache
// without coupling it to the Cache type itself.
type evictorConfig[K comparable, V any] struct {
	store       *Store[K, V]
	policy      eviction.Policy[K]
	maxEntries  int
	sweepEvery  time.Duration
	sampleSize  int
	logger      *slog.Logger

	// onExpired/onEvicted are invoked with the key and old value of an
	// entry removed by the Evictor, outside of any Store lock, so the
	// caller (the Cache) can run the full notify+statistics stages.
	onExpired func(key K, value V)
	onEvicted func(key K, value V)
}

// evictor is the background worker that enforces capacity (via the
// configured Policy) and performs the lazy expiry sweep, decoupling both
// from the cache's synchronous request path.
type evictor[K comparable, V any] struct {
	cfg    evictorConfig[K, V]
	stopCh chan struct{}
	doneCh chan struct{}
}

func newEvictor[K comparable, V any](cfg evictorConfig[K, V]) *evictor[K, V] {
	if cfg.sampleSize <= 0 {
		cfg.sampleSize = 64
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &evictor[K, V]{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (e *evictor[K, V]) start() {
	if e.cfg.sweepEvery <= 0 {
		close(e.doneCh)
		return
	}
	go e.run()
}

func (e *evictor[K, V]) run() {
	defer close(e.doneCh)
	ticker := time.NewTicker(e.cfg.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick performs one lazy-expiry sweep and then, if the store is still over
// capacity, runs capacity eviction until it is back at or under the limit.
func (e *evictor[K, V]) tick() {
	now := time.Now()

	expired := e.cfg.store.SweepExpired(now)
	for _, pair := range expired {
		if e.cfg.policy != nil {
			e.cfg.policy.OnRemove(pair.Key)
		}
		if e.cfg.onExpired != nil {
			e.cfg.onExpired(pair.Key, pair.Value)
		}
	}

	if e.cfg.maxEntries <= 0 || e.cfg.policy == nil {
		return
	}

	for e.cfg.store.Len() > e.cfg.maxEntries {
		if !e.evictOne(now) {
			e.cfg.logger.Warn("cachecore: evictor could not select a victim while over capacity",
				"size", e.cfg.store.Len(), "max_entries", e.cfg.maxEntries)
			return
		}
	}
}

// evictOne asks the policy for one victim and removes it via
// ComposeAndClassify, so the removal is itself an atomic, classified store
// operation rather than a bypass of the Store's invariants.
func (e *evictor[K, V]) evictOne(now time.Time) bool {
	candidates := e.sample()
	victim, ok := e.cfg.policy.SelectVictim(candidates)
	if !ok {
		return false
	}

	result := e.cfg.store.ComposeAndClassify(victim, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		return Remove[V]()
	})

	e.cfg.policy.OnRemove(victim)

	if result.Status == Removed && e.cfg.onEvicted != nil {
		e.cfg.onEvicted(victim, result.PriorValue)
	}
	if result.Expired && e.cfg.onExpired != nil {
		e.cfg.onExpired(victim, result.ExpiredValue)
	}
	// Status == Unchanged means the victim was already gone (raced with a
	// concurrent remove/expiry); the eviction loop will simply re-sample.
	return true
}

func (e *evictor[K, V]) sample() []eviction.Candidate[K] {
	raw := e.cfg.store.Sample(e.cfg.sampleSize)
	now := time.Now()
	out := make([]eviction.Candidate[K], len(raw))
	for i, c := range raw {
		cand := eviction.Candidate[K]{
			Key:         c.Key,
			AgeNanos:    now.Sub(c.CreationTime).Nanoseconds(),
			IdleNanos:   now.Sub(c.LastAccessTime).Nanoseconds(),
			AccessCount: c.AccessCount,
		}
		if !c.ExpiryTime.IsZero() {
			cand.HasExpiry = true
			cand.ExpiresInNanos = c.ExpiryTime.Sub(now).Nanoseconds()
		}
		out[i] = cand
	}
	return out
}

// sweepNow performs one synchronous sweep pass on the caller's goroutine.
func (e *evictor[K, V]) sweepNow() {
	e.tick()
}

func (e *evictor[K, V]) stop() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	<-e.doneCh
}
