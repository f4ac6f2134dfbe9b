// Package cachecore implements an in-process, concurrent key-value cache
// with bounded capacity, pluggable eviction, per-entry expiration, optional
// read-through loading and write-through persistence, and an observable
// event stream of entry lifecycle transitions.
package cachecore

import "time"

// Entry is the unit of storage owned exclusively by the Store slot that
// holds it. A zero-value expiryTime means the entry never expires.
type Entry[V any] struct {
	value          V
	creationTime   time.Time
	lastAccessTime time.Time
	expiryTime     time.Time
	accessCount    uint64
	version        uint64
}

// Value returns the entry's current value.
func (e *Entry[V]) Value() V { return e.value }

// CreationTime returns when the entry was first inserted.
func (e *Entry[V]) CreationTime() time.Time { return e.creationTime }

// LastAccessTime returns the last time the entry was observed (read or write).
func (e *Entry[V]) LastAccessTime() time.Time { return e.lastAccessTime }

// ExpiryTime returns the absolute expiry instant, or the zero Time if the
// entry never expires.
func (e *Entry[V]) ExpiryTime() time.Time { return e.expiryTime }

// AccessCount returns the number of observed accesses since creation, used
// by sampled-LFU eviction. It is a plain uint64 counter with no saturation
// check.
func (e *Entry[V]) AccessCount() uint64 { return e.accessCount }

// Version is a monotonic counter incremented on every content change,
// usable by callers that need optimistic-concurrency visibility beyond the
// Store's own per-key critical section.
func (e *Entry[V]) Version() uint64 { return e.version }

// expired reports whether the entry's expiry has passed at instant now.
// A zero expiryTime means "never expires".
func (e *Entry[V]) expired(now time.Time) bool {
	return !e.expiryTime.IsZero() && !e.expiryTime.After(now)
}

// EntryState names a point in the entry lifecycle state machine
// (ABSENT -> LIVE -> EXPIRED -> ABSENT, or LIVE -> REMOVED -> ABSENT).
// It is informational — the Store does not persist it, callers derive it
// from ChangeStatus and Entry presence.
type EntryState int

const (
	// StateAbsent means no entry exists for the key.
	StateAbsent EntryState = iota
	// StateLive means the entry exists and has not expired.
	StateLive
	// StateExpired is the virtual state observed when an entry's expiry has
	// passed but the removal/notification has not yet completed.
	StateExpired
	// StateRemoved is the virtual state observed immediately after a
	// successful user-initiated removal, before the slot is dropped.
	StateRemoved
)

func (s EntryState) String() string {
	switch s {
	case StateAbsent:
		return "ABSENT"
	case StateLive:
		return "LIVE"
	case StateExpired:
		return "EXPIRED"
	case StateRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}
