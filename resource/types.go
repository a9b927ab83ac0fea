package resource

// Handle is an opaque reference to a value in a table.
// Handles below the table's base are never assigned.
type Handle uint32

// Event types for lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
	EventMoved
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	case EventMoved:
		return "moved"
	}
	return "unknown"
}

// Event represents a lifecycle event.
// From is only set for EventMoved.
type Event struct {
	Value  any
	Handle Handle
	From   Handle
	Type   EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Backend provides the underlying storage mechanism for a table.
type Backend interface {
	// Create stores a value under the next unused handle.
	Create(value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes a value and returns (value, true) if it was present.
	Drop(handle Handle) (any, bool)

	// Replace stores value under an existing or previously assigned handle,
	// returning the value it displaced, if any.
	Replace(handle Handle, value any) (any, bool, error)

	// Each visits live handles in ascending order until fn returns false.
	Each(fn func(Handle, any) bool)

	// Len returns the number of live handles.
	Len() int

	// Close releases all values held by the backend.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup when
// removed from a table.
type Dropper interface {
	Drop()
}
