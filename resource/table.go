package resource

import (
	"sync"
)

// Table maps handles to values of type T on top of a Backend, notifying
// observers of every lifecycle change.
type Table[T any] struct {
	backend   Backend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a table with a LocalBackend whose first handle is base.
func NewTable[T any](base Handle) *Table[T] {
	return NewTableWithBackend[T](NewLocalBackend(base))
}

// NewTableWithBackend creates a table over an existing backend.
func NewTableWithBackend[T any](b Backend) *Table[T] {
	return &Table[T]{backend: b}
}

// Insert adds a value and returns its handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0, ErrClosed
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table[T]) Get(handle Handle) (T, bool) {
	v, ok := t.backend.Get(handle)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// Remove drops a value and returns (value, true) if found.
func (t *Table[T]) Remove(handle Handle) (T, bool) {
	value, ok := t.backend.Drop(handle)
	if !ok {
		var zero T
		return zero, false
	}
	t.dropped(handle, value)

	typed, _ := value.(T)
	return typed, true
}

// Move transfers the value at from to to, dropping whatever occupied to.
// from is removed. Returns false when from is not live or to was never
// assigned by this table.
func (t *Table[T]) Move(from, to Handle) bool {
	if from == to {
		_, ok := t.backend.Get(from)
		return ok
	}

	value, ok := t.backend.Get(from)
	if !ok {
		return false
	}
	old, had, err := t.backend.Replace(to, value)
	if err != nil {
		return false
	}
	t.backend.Drop(from)

	if had {
		t.dropped(to, old)
	}
	t.notify(Event{
		Type:   EventMoved,
		Handle: to,
		From:   from,
		Value:  value,
	})
	return true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. Observers are compared by identity, so
// an ObserverFunc cannot be unsubscribed.
func (t *Table[T]) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	return t.backend.Len()
}

// Each iterates over live values in ascending handle order.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	t.backend.Each(func(h Handle, v any) bool {
		typed, ok := v.(T)
		if !ok {
			return true
		}
		return fn(h, typed)
	})
}

// Clear drops all values.
func (t *Table[T]) Clear() {
	// Collect handles first to avoid holding lock during Remove
	var handles []Handle
	t.backend.Each(func(h Handle, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close releases all values and stops accepting inserts.
func (t *Table[T]) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *Table[T]) dropped(handle Handle, value any) {
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Value:  value,
	})
}

func (t *Table[T]) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
