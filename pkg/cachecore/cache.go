package cachecore

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore/eviction"
)

// cacheState is the Cache lifecycle state machine: OPEN -> CLOSING ->
// CLOSED (spec.md §4.7). CLOSED is terminal.
type cacheState int32

const (
	stateOpen cacheState = iota
	stateClosing
	stateClosed
)

// Cache is an in-process, concurrent key-value cache providing bounded
// capacity with pluggable eviction, per-entry expiration, optional
// read-through loading and write-through persistence, and an observable
// event stream of entry lifecycle transitions.
//
// Every public operation that returns an error, except Close, fails with an
// *IllegalStateError once the Cache has left the OPEN state. IsClosed,
// Iterator, Statistics and HasListenerFor do not check the state and keep
// answering after Close.
type Cache[K comparable, V any] struct {
	store      *Store[K, V]
	registry   *registry[K, V]
	stats      *Statistics
	expiration ExpirationPolicy
	policy     eviction.Policy[K]
	evictor    *evictor[K, V]
	loader     CacheLoader[K, V]
	writer     CacheWriter[K, V]
	log        *slog.Logger
	cfg        Config

	state atomic.Int32
}

// New constructs a Cache from a validated Config. loader and writer may be
// nil, in which case read-through and write-through are disabled
// respectively.
func New[K comparable, V any](cfg Config, loader CacheLoader[K, V], writer CacheWriter[K, V]) *Cache[K, V] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache[K, V]{
		store:      NewStore[K, V](),
		registry:   newRegistry[K, V](),
		stats:      &Statistics{},
		expiration: cfg.buildExpirationPolicy(),
		policy:     buildEvictionPolicy[K](cfg),
		loader:     loader,
		writer:     writer,
		log:        logger,
		cfg:        cfg,
	}

	c.evictor = newEvictor(evictorConfig[K, V]{
		store:      c.store,
		policy:     c.policy,
		maxEntries: cfg.MaxEntries,
		sweepEvery: cfg.SweepInterval,
		sampleSize: cfg.SampleSize,
		logger:     logger,
		onExpired:  func(key K, value V) { c.dispatchEvictorEvent(EventExpired, key, value) },
		onEvicted:  func(key K, value V) { c.dispatchEvictorEvent(EventRemoved, key, value) },
	})
	c.evictor.start()

	return c
}

func (c *Cache[K, V]) checkOpen() error {
	if cacheState(c.state.Load()) != stateOpen {
		return ErrCacheClosed
	}
	return nil
}

// IsClosed reports whether the Cache has left the OPEN state. It never
// fails on a closed cache.
func (c *Cache[K, V]) IsClosed() bool {
	return cacheState(c.state.Load()) != stateOpen
}

// Close transitions the Cache OPEN -> CLOSING -> CLOSED, draining the
// evictor and every async dispatcher worker up to cfg.DrainTimeout each
// (or until ctx is done); a drain still running when its wait ends
// finishes in the background. It is idempotent.
func (c *Cache[K, V]) Close(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(stateOpen), int32(stateClosing)) {
		return nil
	}
	for _, stop := range []func(){c.evictor.stop, c.registry.closeAll} {
		done := make(chan struct{})
		go func() { stop(); close(done) }()
		var timeout <-chan time.Time
		if c.cfg.DrainTimeout > 0 {
			timer := time.NewTimer(c.cfg.DrainTimeout)
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case <-done:
		case <-timeout:
		case <-ctx.Done():
		}
	}
	c.state.Store(int32(stateClosed))
	return nil
}

// Get returns the value for key, read-through loading it if a CacheLoader
// is configured and the key is absent or expired.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}

	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if exists {
			return Touch[V](c.expiration.OnAccess(now, current.expiryTime))
		}
		return Keep[V]()
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "get", stats: func(ChangeStatus) statsDelta {
		return getStatsRule(res.HadPrior)
	}}); err != nil {
		return zero, false, err
	}
	if res.HadPrior {
		return res.PriorValue, true, nil
	}

	if c.loader == nil {
		return zero, false, nil
	}
	value, found, err := c.loader.Load(ctx, key)
	if err != nil {
		return zero, false, &CacheLoaderException{Key: key, Cause: err}
	}
	if !found {
		return zero, false, nil
	}
	if err := c.Put(ctx, key, value); err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// GetAll returns every currently-present, unexpired value for the given
// keys, read-through loading any miss when a CacheLoader is configured.
func (c *Cache[K, V]) GetAll(ctx context.Context, keys []K) (map[K]V, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[K]V, len(keys))
	var misses []K
	for _, k := range keys {
		v, ok, err := c.getNoLoad(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		} else {
			misses = append(misses, k)
		}
	}
	if c.loader == nil || len(misses) == 0 {
		return out, nil
	}
	loaded, err := c.loader.LoadAll(ctx, misses)
	if err != nil {
		return nil, &CacheLoaderException{Key: misses, Cause: err}
	}
	for k, v := range loaded {
		if err := c.Put(ctx, k, v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (c *Cache[K, V]) getNoLoad(ctx context.Context, key K) (V, bool, error) {
	var zero V
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if exists {
			return Touch[V](c.expiration.OnAccess(now, current.expiryTime))
		}
		return Keep[V]()
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "get", stats: func(ChangeStatus) statsDelta {
		return getStatsRule(res.HadPrior)
	}}); err != nil {
		return zero, false, err
	}
	if res.HadPrior {
		return res.PriorValue, true, nil
	}
	return zero, false, nil
}

// ContainsKey reports whether key is present and unexpired, without
// affecting statistics or triggering read-through (JSR107 semantics).
func (c *Cache[K, V]) ContainsKey(ctx context.Context, key K) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		return Keep[V]()
	})
	if res.Expired {
		c.onExpiredNotify(key, res.ExpiredValue)
	}
	return res.HadPrior, nil
}

// Put unconditionally installs value for key, creating or overwriting the
// existing entry.
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if exists {
			return Replace[V](value, c.expiration.OnUpdate(now, current.expiryTime))
		}
		return Insert[V](value, c.expiration.OnCreate(now))
	})
	return c.runPipeline(ctx, key, res, action[K, V]{name: "put", stats: putStatsRule})
}

// PutAll installs every entry in values, each as an independent Put.
func (c *Cache[K, V]) PutAll(ctx context.Context, values map[K]V) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for k, v := range values {
		if err := c.Put(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// PutIfAbsent installs value for key only if key is currently absent
// (including expired). Returns true if the entry was created.
func (c *Cache[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if exists {
			return Keep[V]()
		}
		return Insert[V](value, c.expiration.OnCreate(now))
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "putIfAbsent", stats: putIfAbsentStatsRule}); err != nil {
		return false, err
	}
	return res.Status == Created, nil
}

// GetAndPut unconditionally installs value for key and returns the prior
// value, if any.
func (c *Cache[K, V]) GetAndPut(ctx context.Context, key K, value V) (V, bool, error) {
	if err := c.checkOpen(); err != nil {
		var zero V
		return zero, false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if exists {
			return Replace[V](value, c.expiration.OnUpdate(now, current.expiryTime))
		}
		return Insert[V](value, c.expiration.OnCreate(now))
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "getAndPut", stats: putStatsRule}); err != nil {
		var zero V
		return zero, false, err
	}
	return res.PriorValue, res.HadPrior, nil
}

// Replace overwrites key's value with newValue only if key is currently
// present. Returns true if the replacement happened. It never creates a
// new entry (resolves the CREATED-column open question in spec.md §9:
// replace's mutator declines whenever the key is absent).
func (c *Cache[K, V]) Replace(ctx context.Context, key K, newValue V) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		return Replace[V](newValue, c.expiration.OnUpdate(now, current.expiryTime))
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "replace", stats: replaceStatsRule}); err != nil {
		return false, err
	}
	return res.Status == Changed, nil
}

// ReplaceIfEquals overwrites key's value with newValue only if it is
// currently present and equal to oldValue (CAS). equal is the caller's
// equality check (e.g. `==` for comparable V, or a custom comparator for
// non-comparable value types). Returns ChangeStatus so callers can
// distinguish CAS_FAILED_EQUALS from a plain miss.
func (c *Cache[K, V]) ReplaceIfEquals(ctx context.Context, key K, oldValue, newValue V, equal func(a, b V) bool) (ChangeStatus, error) {
	if err := c.checkOpen(); err != nil {
		return Unchanged, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		if !equal(current.value, oldValue) {
			return CASMismatch[V]()
		}
		return Replace[V](newValue, c.expiration.OnUpdate(now, current.expiryTime))
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "replace", stats: replaceStatsRule}); err != nil {
		return res.Status, err
	}
	return res.Status, nil
}

// GetAndReplace overwrites key's value with newValue only if key is
// currently present, returning the prior value.
func (c *Cache[K, V]) GetAndReplace(ctx context.Context, key K, newValue V) (V, bool, error) {
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		return Replace[V](newValue, c.expiration.OnUpdate(now, current.expiryTime))
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "getAndReplace", stats: replaceStatsRule}); err != nil {
		return zero, false, err
	}
	return res.PriorValue, res.HadPrior && res.Status == Changed, nil
}

// Remove deletes key if present. Returns true if a removal happened.
func (c *Cache[K, V]) Remove(ctx context.Context, key K) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		return Remove[V]()
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "remove", stats: removeStatsRule}); err != nil {
		return false, err
	}
	return res.Status == Removed, nil
}

// RemoveIfEquals deletes key only if its current value equals oldValue
// (CAS). Returns ChangeStatus so callers can distinguish CAS_FAILED_EQUALS
// from a plain miss.
func (c *Cache[K, V]) RemoveIfEquals(ctx context.Context, key K, oldValue V, equal func(a, b V) bool) (ChangeStatus, error) {
	if err := c.checkOpen(); err != nil {
		return Unchanged, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		if !equal(current.value, oldValue) {
			return CASMismatch[V]()
		}
		return Remove[V]()
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "remove", stats: removeStatsRule}); err != nil {
		return res.Status, err
	}
	return res.Status, nil
}

// GetAndRemove deletes key if present and returns its prior value.
func (c *Cache[K, V]) GetAndRemove(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := c.checkOpen(); err != nil {
		return zero, false, err
	}
	now := time.Now()
	res := c.store.ComposeAndClassify(key, now, func(current *Entry[V], exists bool) Decision[V] {
		if !exists {
			return Keep[V]()
		}
		return Remove[V]()
	})
	if err := c.runPipeline(ctx, key, res, action[K, V]{name: "remove", stats: removeStatsRule}); err != nil {
		return zero, false, err
	}
	return res.PriorValue, res.Status == Removed, nil
}

// RemoveAll deletes every key supplied, each as an independent Remove.
func (c *Cache[K, V]) RemoveAll(ctx context.Context, keys []K) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := c.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Clear wipes every entry without invoking the writer or emitting any
// per-key notification — a bulk administrative operation, not a sequence
// of Remove calls (JSR107's clear() is likewise exempt from write-through
// and listener notification).
func (c *Cache[K, V]) Clear(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	for _, k := range c.store.Iterator() {
		c.store.ComposeAndClassify(k, time.Now(), func(current *Entry[V], exists bool) Decision[V] {
			return Remove[V]()
		})
		if c.policy != nil {
			c.policy.OnRemove(k)
		}
	}
	return nil
}

// Iterator returns a weakly-consistent snapshot of keys currently in the
// store (spec.md §6). Expired keys observed during iteration correctly
// report absence on a subsequent Get.
func (c *Cache[K, V]) Iterator() []K {
	return c.store.Iterator()
}

// Statistics returns a point-in-time snapshot of the monotonic counter
// bundle.
func (c *Cache[K, V]) Statistics() Snapshot {
	return c.stats.snapshot()
}

// ListenerConfig describes a single listener registration (spec.md §6).
type ListenerConfig[K comparable, V any] struct {
	// ID, if empty, is generated.
	ID       string
	Listener Listener[K, V]

	// EventTypes, if empty, subscribes to every EventType.
	EventTypes []EventType

	// FilterPredicate, if set, is consulted before delivery; a false
	// return suppresses that event for this listener only.
	FilterPredicate func(Event[K, V]) bool

	// OldValueRequired documents whether the caller needs OldValue
	// populated on UPDATED/REMOVED events. The pipeline always computes it
	// when available; this flag exists for interface parity with JSR107's
	// CacheEntryListenerConfiguration and is not otherwise enforced.
	OldValueRequired bool

	// Mode selects SYNC (the zero value/default) or ASYNC_TIMED delivery.
	Mode      DispatchMode
	QueueSize int
	Timeout   time.Duration
}

// RegisterCacheEntryListener adds a listener subscription. Registering the
// same ID twice fails with an *IllegalArgumentError and leaves the first
// registration active (spec.md §8 scenario 5).
func (c *Cache[K, V]) RegisterCacheEntryListener(cfg ListenerConfig[K, V]) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if cfg.Listener == nil {
		return "", &IllegalArgumentError{Message: "listener must not be nil"}
	}

	listener := cfg.Listener
	if cfg.FilterPredicate != nil {
		pred := cfg.FilterPredicate
		inner := listener
		listener = ListenerFunc[K, V](func(e Event[K, V]) {
			if pred(e) {
				inner.OnEvent(e)
			}
		})
	}

	types := make(map[EventType]bool, len(cfg.EventTypes))
	for _, t := range cfg.EventTypes {
		types[t] = true
	}

	reg := Registration[K, V]{
		ID:         cfg.ID,
		Listener:   listener,
		EventTypes: types,
		Mode:       cfg.Mode,
		QueueSize:  cfg.QueueSize,
		Timeout:    cfg.Timeout,
	}
	if reg.QueueSize == 0 {
		reg.QueueSize = c.cfg.AsyncQueueSize
	}
	if reg.Timeout == 0 {
		reg.Timeout = c.cfg.AsyncTimeout
	}

	return c.registry.register(reg)
}

// DeregisterCacheEntryListener removes a listener by ID. Deregistering an
// unknown ID is not an error.
func (c *Cache[K, V]) DeregisterCacheEntryListener(id string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	c.registry.deregister(id)
	return nil
}

// HasListenerFor reports whether any currently-registered listener
// subscribes to EventType t (spec.md §4.5/§8 invariant 3).
func (c *Cache[K, V]) HasListenerFor(t EventType) bool {
	return c.registry.hasSubscribers(t)
}
