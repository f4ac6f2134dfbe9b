// Package eventstream exposes a cachecore.Cache's entry lifecycle events
// (spec.md §1's "observable event stream of entry lifecycle transitions")
// to external, out-of-process observers over a WebSocket, and exposes a
// statistics snapshot over plain JSON — the transport the spec leaves
// unspecified.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/vitaliisemenov/cachecore/pkg/cachecore"
)

// WireEvent is the JSON-over-the-wire representation of a
// cachecore.Event, independent of the cache's key/value generic
// parameters.
type WireEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	OldValue  any       `json:"old_value,omitempty"`
	NewValue  any       `json:"new_value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
}

// NewWireEvent adapts a cachecore.Event into a WireEvent. keyFn renders the
// generic key as a string; old and new values are carried as-is, so V must
// be JSON-marshalable for the event to be sent.
func NewWireEvent[K comparable, V any](e cachecore.Event[K, V], keyFn func(K) string) WireEvent {
	w := WireEvent{
		ID:        e.ID,
		Type:      e.Type.String(),
		Key:       keyFn(e.Key),
		Timestamp: time.Now(),
	}
	if e.HasOld {
		w.OldValue = e.OldValue
	}
	if e.HasNew {
		w.NewValue = e.NewValue
	}
	return w
}

func newSubscriberID() string { return uuid.NewString() }
