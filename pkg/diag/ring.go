package diag

import "sync"

// Ring is a fixed-capacity buffer that overwrites its oldest item when full.
// A capacity of 0 retains nothing.
type Ring[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	count int
}

// NewRing creates a ring holding at most capacity items. Negative capacities
// are treated as 0.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{items: make([]T, max(capacity, 0))}
}

// Push appends item, dropping the oldest item when the ring is full.
func (r *Ring[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) == 0 {
		return
	}

	tail := (r.head + r.count) % len(r.items)
	r.items[tail] = item
	if r.count < len(r.items) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.items)
}

// Items returns a copy of the retained items, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.itemsLocked()
}

func (r *Ring[T]) itemsLocked() []T {
	out := make([]T, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(r.head+i)%len(r.items)])
	}
	return out
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Clear drops every retained item.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.items)
	r.head = 0
	r.count = 0
}

// Resize changes the capacity, keeping the newest items that still fit.
func (r *Ring[T]) Resize(capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity = max(capacity, 0)
	kept := r.itemsLocked()
	if len(kept) > capacity {
		kept = kept[len(kept)-capacity:]
	}

	r.items = make([]T, capacity)
	copy(r.items, kept)
	r.head = 0
	r.count = len(kept)
}
