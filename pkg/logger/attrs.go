package logger

import (
	"log/slog"

	"dxmsg/pkg/entity"
	"dxmsg/pkg/message"
)

// Component names used across the engine.
const (
	ComponentBus     = "bus"
	ComponentToken   = "token"
	ComponentSim     = "sim"
	ComponentGateway = "gateway"
)

// Attribute keys the json format hoists into Entry.
const (
	KeyComponent = "component"
	KeyOwner     = "owner"
	KeyRoute     = "route"
	KeyType      = "type"
)

// For returns log scoped to component. A nil log scopes slog.Default().
func For(log *slog.Logger, component string) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With(KeyComponent, component)
}

// Owner is the attribute for the identity that owns a registration.
func Owner(id entity.ID) slog.Attr {
	return slog.Any(KeyOwner, id)
}

// Identity is the attribute for any other identity, such as a target,
// source or actor.
func Identity(key string, id entity.ID) slog.Attr {
	return slog.Any(key, id)
}

// Route is the attribute for the chain a registration lands in.
func Route(r message.Route) slog.Attr {
	return slog.Any(KeyRoute, r)
}

// Type is the attribute for a message type name.
func Type(name string) slog.Attr {
	return slog.String(KeyType, name)
}

// TypeOf is Type for the message type T.
func TypeOf[T any]() slog.Attr {
	return Type(message.TypeName[T]())
}

// Err is the attribute for a failure.
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
