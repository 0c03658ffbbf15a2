// Package message defines the category traits that message value types carry
// and the routes a handler can register on.
//
// A message is a plain immutable value that embeds exactly one trait:
//
//	type Ping struct {
//	    message.Untargeted
//	    Seq int
//	}
//
//	type Heal struct {
//	    message.Targeted
//	    Amount int
//	}
//
// Embedding two traits leaves the Category selector ambiguous, so the type
// satisfies none of the constraints below and cannot be emitted.
package message

import "reflect"

// Category is the routing trait of a message type.
type Category uint8

const (
	CategoryUntargeted Category = iota + 1
	CategoryTargeted
	CategoryBroadcast
)

func (c Category) String() string {
	switch c {
	case CategoryUntargeted:
		return "untargeted"
	case CategoryTargeted:
		return "targeted"
	case CategoryBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Message is satisfied by every value type that embeds one trait.
type Message interface {
	Category() Category
}

// UntargetedMessage is delivered to every subscriber of its type.
type UntargetedMessage interface {
	Message
	untargeted()
}

// TargetedMessage is routed to one identity plus target-agnostic observers.
type TargetedMessage interface {
	Message
	targeted()
}

// BroadcastMessage is emitted from one identity to source-bound subscribers
// plus source-agnostic observers.
type BroadcastMessage interface {
	Message
	broadcast()
}

// Untargeted is the trait embedded by type-wide messages.
type Untargeted struct{}

func (Untargeted) Category() Category { return CategoryUntargeted }
func (Untargeted) untargeted()        {}

// Targeted is the trait embedded by messages routed to a target identity.
type Targeted struct{}

func (Targeted) Category() Category { return CategoryTargeted }
func (Targeted) targeted()          {}

// Broadcast is the trait embedded by messages emitted from a source identity.
type Broadcast struct{}

func (Broadcast) Category() Category { return CategoryBroadcast }
func (Broadcast) broadcast()         {}

// CategoryOf returns the trait of T without needing a value. Pointer
// message types resolve through their element type, so *Ping reports the
// category of Ping.
func CategoryOf[T Message]() Category {
	if t := reflect.TypeFor[T](); t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface().(Message).Category()
	}
	var zero T
	return zero.Category()
}

// IsNil reports whether msg is a nil pointer message.
func IsNil[T Message](msg T) bool {
	if reflect.TypeFor[T]().Kind() != reflect.Pointer {
		return false
	}
	return reflect.ValueOf(msg).IsNil()
}

// TypeName returns the printable name of T used in diagnostics.
func TypeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
