package resource

import (
	"errors"
	"slices"
	"sync"
)

var (
	ErrClosed        = errors.New("resource backend closed")
	ErrNeverAssigned = errors.New("handle was never assigned")
	ErrExhausted     = errors.New("handle space exhausted")
)

// LocalBackend is an in-memory backend. Handles are assigned monotonically
// starting at base and are never reused, even after a drop.
type LocalBackend struct {
	entries map[Handle]any
	base    Handle
	next    Handle
	mu      sync.RWMutex
	closed  bool
}

// NewLocalBackend creates a backend whose first handle is base.
func NewLocalBackend(base Handle) *LocalBackend {
	return &LocalBackend{
		entries: make(map[Handle]any, 16),
		base:    base,
		next:    base,
	}
}

// Create stores a value and returns a fresh handle.
func (b *LocalBackend) Create(value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}
	if b.next < b.base {
		// wrapped around
		return 0, ErrExhausted
	}

	h := b.next
	b.next++
	b.entries[h] = value
	return h, nil
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.entries[handle]
	return v, ok
}

// Drop removes a value and returns (value, true) if it was present.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.entries[handle]
	if !ok {
		return nil, false
	}
	delete(b.entries, handle)
	return v, true
}

// Replace stores value under handle. The handle must have been assigned
// by Create before; it does not need to be live.
func (b *LocalBackend) Replace(handle Handle, value any) (any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, false, ErrClosed
	}
	if handle < b.base || handle >= b.next {
		return nil, false, ErrNeverAssigned
	}

	old, had := b.entries[handle]
	b.entries[handle] = value
	return old, had, nil
}

// Each iterates over live values in handle order.
func (b *LocalBackend) Each(fn func(Handle, any) bool) {
	b.mu.RLock()
	handles := make([]Handle, 0, len(b.entries))
	for h := range b.entries {
		handles = append(handles, h)
	}
	b.mu.RUnlock()

	slices.Sort(handles)
	for _, h := range handles {
		v, ok := b.Get(h)
		if !ok {
			continue
		}
		if !fn(h, v) {
			return
		}
	}
}

// Len returns the number of live values.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Close drops every value and stops accepting new ones.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for h, v := range b.entries {
		if d, ok := v.(Dropper); ok {
			d.Drop()
		}
		delete(b.entries, h)
	}
	return nil
}

var _ Backend = (*LocalBackend)(nil)
