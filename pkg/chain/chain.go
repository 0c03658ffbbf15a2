// Package chain implements the ordered handler list shared by the bus and the
// per-owner handler records.
//
// Entries are ordered by ascending priority; equal priorities keep insertion
// order. Readers take an immutable snapshot with Snapshot, which never
// allocates; writers publish a fresh slice. A removal marks the entry dead so
// an iteration already in flight skips it, while an entry added during an
// iteration is first seen by the next Snapshot.
//
// Writers must be serialized by the caller.
package chain

import (
	"slices"
	"sync/atomic"
)

// Entry is one registered callback.
type Entry[F any] struct {
	Fn       F
	Priority int

	seq     uint64
	removed atomic.Bool
}

// Live reports whether the entry is still registered.
func (e *Entry[F]) Live() bool {
	return !e.removed.Load()
}

// Chain is a priority-ordered list of callbacks. The zero value is empty and
// ready to use.
type Chain[F any] struct {
	entries atomic.Pointer[[]*Entry[F]]
	seq     uint64
}

// Add inserts fn after every entry whose priority is <= priority.
func (c *Chain[F]) Add(fn F, priority int) *Entry[F] {
	c.seq++
	entry := &Entry[F]{Fn: fn, Priority: priority, seq: c.seq}

	current := c.Snapshot()
	at, _ := slices.BinarySearchFunc(current, entry, compareEntries[F])

	next := make([]*Entry[F], 0, len(current)+1)
	next = append(next, current[:at]...)
	next = append(next, entry)
	next = append(next, current[at:]...)
	c.entries.Store(&next)

	return entry
}

// Remove unlinks entry. It returns false when the entry was already removed
// or never belonged to this chain.
func (c *Chain[F]) Remove(entry *Entry[F]) bool {
	if entry == nil || entry.removed.Load() {
		return false
	}

	current := c.Snapshot()
	at := slices.Index(current, entry)
	if at < 0 {
		return false
	}

	entry.removed.Store(true)
	next := slices.Delete(slices.Clone(current), at, at+1)
	if len(next) == 0 {
		c.entries.Store(nil)
		return true
	}
	c.entries.Store(&next)

	return true
}

// Snapshot returns the current entries. The slice must not be modified.
func (c *Chain[F]) Snapshot() []*Entry[F] {
	if p := c.entries.Load(); p != nil {
		return *p
	}

	return nil
}

// Len returns the number of live entries.
func (c *Chain[F]) Len() int {
	return len(c.Snapshot())
}

// Empty reports whether the chain has no entries.
func (c *Chain[F]) Empty() bool {
	return c.Len() == 0
}

// Clear removes every entry.
func (c *Chain[F]) Clear() {
	for _, entry := range c.Snapshot() {
		entry.removed.Store(true)
	}
	c.entries.Store(nil)
}

func compareEntries[F any](a, b *Entry[F]) int {
	if a.Priority != b.Priority {
		if a.Priority < b.Priority {
			return -1
		}
		return 1
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	default:
		return 0
	}
}
