package interop

import (
	"errors"
	"math"
	"sync"
)

// Handle names an object held by the API. Handles are never reused, so a stale handle cannot
// reach a newer object: a registry that has given out every uint32 refuses new objects instead
// of wrapping around. 0 is never valid.
type Handle uint32

const InvalidHandle Handle = 0

var ErrHandlesExhausted = errors.New("interop: every handle has been used")

type registry[T comparable] struct {
	mu      sync.RWMutex
	next    Handle
	last    Handle
	items   map[Handle]T
	handles map[T]Handle
}

func newRegistry[T comparable]() *registry[T] {
	return &registry[T]{
		last:    math.MaxUint32,
		items:   make(map[Handle]T),
		handles: make(map[T]Handle),
	}
}

func (r *registry[T]) add(item T) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= r.last {
		return InvalidHandle, ErrHandlesExhausted
	}
	r.next++
	r.items[r.next] = item
	r.handles[item] = r.next
	return r.next, nil
}

func (r *registry[T]) get(h Handle) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[h]
	return item, ok
}

// handleOf is the reverse lookup, InvalidHandle for unknown items
func (r *registry[T]) handleOf(item T) Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[item]
}

func (r *registry[T]) remove(h Handle) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[h]
	if ok {
		delete(r.items, h)
		delete(r.handles, item)
	}
	return item, ok
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
