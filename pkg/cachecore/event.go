package cachecore

import "github.com/google/uuid"

// EventType names a point in an entry's lifecycle that listeners can
// subscribe to.
type EventType int

const (
	EventCreated EventType = iota
	EventUpdated
	EventRemoved
	EventExpired
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "CREATED"
	case EventUpdated:
		return "UPDATED"
	case EventRemoved:
		return "REMOVED"
	case EventExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// bit returns the EventType's position in the presence bitmask.
func (t EventType) bit() uint32 { return 1 << uint(t) }

// Event is a single entry lifecycle notification delivered to a listener.
type Event[K comparable, V any] struct {
	ID  string
	Type EventType
	Key  K

	// OldValue is populated for UPDATED, REMOVED and EXPIRED; it is the
	// zero value for CREATED.
	OldValue V
	HasOld   bool

	// NewValue is populated for CREATED and UPDATED.
	NewValue V
	HasNew   bool
}

func newEventID() string { return uuid.NewString() }
