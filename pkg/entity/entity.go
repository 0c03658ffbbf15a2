// Package entity defines the identity value carried by message owners.
package entity

import (
	"strconv"
	"sync/atomic"
)

// ID identifies an owner. The zero value is Invalid.
type ID int64

// Invalid is the reserved identity that never names an owner.
const Invalid ID = 0

// Valid reports whether id names an owner.
func (id ID) Valid() bool {
	return id != Invalid
}

// Compare orders identities by their underlying integer.
func (id ID) Compare(other ID) int {
	switch {
	case id < other:
		return -1
	case id > other:
		return 1
	default:
		return 0
	}
}

func (id ID) String() string {
	if !id.Valid() {
		return "entity(invalid)"
	}

	return "entity(" + strconv.FormatInt(int64(id), 10) + ")"
}

// Allocator hands out monotonically increasing valid identities.
type Allocator struct {
	last atomic.Int64
}

// Next returns a fresh identity. It never returns Invalid.
func (a *Allocator) Next() ID {
	return ID(a.last.Add(1))
}
