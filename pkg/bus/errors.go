package bus

import "errors"

var (
	// ErrNilCallback is returned when a registration passes a nil callback.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrInvalidIdentity is returned when a bound route or a targeted or
	// broadcast emission is given entity.Invalid.
	ErrInvalidIdentity = errors.New("identity is not valid")

	// ErrRouteMismatch is returned when a route does not carry the message
	// category of the registered type.
	ErrRouteMismatch = errors.New("route does not match message category")

	// ErrNilMessage is returned when Emit is given a nil pointer message.
	ErrNilMessage = errors.New("message cannot be nil")

	// ErrUnknownCategory is returned when a message reports no known category.
	ErrUnknownCategory = errors.New("unknown message category")
)
