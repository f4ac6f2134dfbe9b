package cachecore

import (
	"context"
	"log/slog"
)

// writeKind tags which write-through call a committed mutation requires.
type writeKind int

const (
	writeNone writeKind = iota
	writePut
	writeDelete
)

func writeKindFor(status ChangeStatus) writeKind {
	switch status {
	case Created, Changed:
		return writePut
	case Removed:
		return writeDelete
	default:
		return writeNone
	}
}

// eventTypeFor is the uniform, data-driven status->EventType rule used by
// every operation's notify stage (spec.md §9: "ChangeStatus as enum
// argument threaded through generic hooks... replace with explicit
// pipeline stages; the decision table is data, not polymorphism").
func eventTypeFor(status ChangeStatus) (EventType, bool) {
	switch status {
	case Created:
		return EventCreated, true
	case Changed:
		return EventUpdated, true
	case Removed:
		return EventRemoved, true
	default:
		return 0, false
	}
}

// action bundles the three data-driven fields spec.md §9 calls for: a
// mutator (supplied by the caller via Store.ComposeAndClassify directly),
// an event-emission rule, and a statistics rule. Because eventTypeFor is
// shared by every operation, only the stats rule varies per call site.
type action[K comparable, V any] struct {
	name  string
	stats statsRule
}

// runPipeline executes stages 2-4 of the ActionPipeline (spec.md §4.4) over
// a ComposeResult already produced by stage 1 (Store.ComposeAndClassify).
// It is shared by every public Cache operation so write-through, notify and
// statistics ordering is identical everywhere.
func (c *Cache[K, V]) runPipeline(ctx context.Context, key K, res ComposeResult[V], act action[K, V]) error {
	var writeErr error

	if res.Expired {
		c.onExpiredNotify(key, res.ExpiredValue)
	}

	if c.policy != nil {
		switch res.Status {
		case Created:
			c.policy.OnInsert(key)
		case Changed, Unchanged, CASFailedEquals:
			if res.HadPrior || res.Status == Changed {
				c.policy.OnAccess(key)
			}
		case Removed:
			c.policy.OnRemove(key)
		}
	}

	if kind := writeKindFor(res.Status); kind != writeNone && c.writer != nil {
		switch kind {
		case writePut:
			if err := c.writer.Write(ctx, key, res.NewValue); err != nil {
				writeErr = &CacheWriterException{Key: key, Op: "write", Cause: err}
			}
		case writeDelete:
			if err := c.writer.Delete(ctx, key); err != nil {
				writeErr = &CacheWriterException{Key: key, Op: "delete", Cause: err}
			}
		}
	}

	// Write-through failures do not roll back the Store mutation (spec.md
	// §4.4, §7): notification and statistics still reflect what actually
	// happened to the store, and the caller is told about the writer error
	// once both stages have run.
	if evtType, ok := eventTypeFor(res.Status); ok {
		c.emit(evtType, key, res)
	}

	if act.stats != nil {
		act.stats(res.Status).apply(c.stats)
	}

	return writeErr
}

// emit constructs and dispatches a single lifecycle event for a committed
// mutation, honoring the presence bitmask fast path before allocating an
// Event record.
func (c *Cache[K, V]) emit(t EventType, key K, res ComposeResult[V]) {
	if !c.registry.hasSubscribers(t) {
		return
	}
	e := Event[K, V]{ID: newEventID(), Type: t, Key: key}
	switch t {
	case EventCreated:
		e.NewValue, e.HasNew = res.NewValue, true
	case EventUpdated:
		e.NewValue, e.HasNew = res.NewValue, true
		e.OldValue, e.HasOld = res.PriorValue, res.HadPrior
	case EventRemoved:
		e.OldValue, e.HasOld = res.PriorValue, res.HadPrior
	}
	c.registry.dispatchOne(e)
}

// onExpiredNotify emits the EXPIRED event produced as a side effect of a
// read/compose step observing a stale entry (spec.md §4.1). It increments
// the expirations counter regardless of whether any listener is present.
func (c *Cache[K, V]) onExpiredNotify(key K, value V) {
	c.stats.recordExpiration()
	if c.policy != nil {
		c.policy.OnRemove(key)
	}
	if !c.registry.hasSubscribers(EventExpired) {
		return
	}
	c.registry.dispatchOne(Event[K, V]{
		ID: newEventID(), Type: EventExpired, Key: key,
		OldValue: value, HasOld: true,
	})
}

// dispatchEvictorEvent is invoked by the evictor for every removal it makes
// (capacity eviction or lazy expiry sweep). It always uses forceAsync
// delivery so a slow listener can never stall the background evictor loop
// (spec.md §4.6).
func (c *Cache[K, V]) dispatchEvictorEvent(t EventType, key K, value V) {
	if t == EventExpired {
		c.stats.recordExpiration()
	} else {
		c.stats.recordEviction()
	}
	if !c.registry.hasSubscribers(t) {
		return
	}
	c.registry.dispatchEvents([]Event[K, V]{{
		ID: newEventID(), Type: t, Key: key, OldValue: value, HasOld: true,
	}}, true)
}

func (c *Cache[K, V]) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.Default()
}
