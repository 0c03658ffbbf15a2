package token

import (
	"fmt"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/callback"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/handler"
	"dxmsg/pkg/message"
)

// RegisterUntargeted stages fn for every T.
func RegisterUntargeted[T message.UntargetedMessage](t *Token, fn func(T), opts ...RegisterOption) (Registration, error) {
	route := message.RouteUntargeted
	if err := validate[T](route, entity.Invalid, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, entity.Invalid, fn), labelFor[T](route, entity.Invalid), func() (func(), error) {
		return handler.RegisterUntargeted(t.handler, o.priority, fn)
	})
}

// RegisterTargeted stages fn for every T targeted at target.
func RegisterTargeted[T message.TargetedMessage](t *Token, target entity.ID, fn func(T), opts ...RegisterOption) (Registration, error) {
	route := message.RouteTargeted
	if err := validate[T](route, target, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, target, fn), labelFor[T](route, target), func() (func(), error) {
		return handler.RegisterTargeted(t.handler, target, o.priority, fn)
	})
}

// RegisterTargetedWithoutTargeting stages fn for every T whatever its target.
func RegisterTargetedWithoutTargeting[T message.TargetedMessage](t *Token, fn func(target entity.ID, msg T), opts ...RegisterOption) (Registration, error) {
	route := message.RouteTargetedWithoutTargeting
	if err := validate[T](route, entity.Invalid, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, entity.Invalid, fn), labelFor[T](route, entity.Invalid), func() (func(), error) {
		return handler.RegisterTargetedWithoutTargeting(t.handler, o.priority, fn)
	})
}

// RegisterBroadcast stages fn for every T emitted from source.
func RegisterBroadcast[T message.BroadcastMessage](t *Token, source entity.ID, fn func(T), opts ...RegisterOption) (Registration, error) {
	route := message.RouteBroadcast
	if err := validate[T](route, source, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, source, fn), labelFor[T](route, source), func() (func(), error) {
		return handler.RegisterBroadcast(t.handler, source, o.priority, fn)
	})
}

// RegisterBroadcastWithoutSource stages fn for every T whatever its source.
func RegisterBroadcastWithoutSource[T message.BroadcastMessage](t *Token, fn func(source entity.ID, msg T), opts ...RegisterOption) (Registration, error) {
	route := message.RouteBroadcastWithoutSource
	if err := validate[T](route, entity.Invalid, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, entity.Invalid, fn), labelFor[T](route, entity.Invalid), func() (func(), error) {
		return handler.RegisterBroadcastWithoutSource(t.handler, o.priority, fn)
	})
}

// RegisterGlobalAcceptAll stages fn for every message of every category.
func RegisterGlobalAcceptAll(t *Token, fn bus.GlobalCallback, opts ...RegisterOption) (Registration, error) {
	route := message.RouteGlobalAcceptAll
	if fn == nil {
		return Registration{}, fmt.Errorf("register %s: %w", route, ErrNilCallback)
	}

	o := applyRegisterOptions(opts)
	key := dedupeKey{route: route, callback: callback.Of(fn)}
	return t.stage(key, route.String(), func() (func(), error) {
		return handler.RegisterGlobalAcceptAll(t.handler, o.priority, fn)
	})
}

// RegisterInterceptor stages fn to run before dispatch of every T. fn
// returns false to veto the emission. Interceptors are installed directly on
// the bus and run regardless of which handlers are active.
func RegisterInterceptor[T message.Message](t *Token, fn bus.Interceptor[T], opts ...RegisterOption) (Registration, error) {
	route := message.RouteInterceptor
	if err := validate[T](route, entity.Invalid, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, entity.Invalid, fn), labelFor[T](route, entity.Invalid), func() (func(), error) {
		return bus.AddInterceptor(t.handler.Bus(), t.handler.Owner(), o.priority, fn)
	})
}

// RegisterPostProcessor stages fn to run after every delivered T.
func RegisterPostProcessor[T message.Message](t *Token, fn bus.PostProcessor[T], opts ...RegisterOption) (Registration, error) {
	route := message.RoutePostProcessor
	if err := validate[T](route, entity.Invalid, fn == nil); err != nil {
		return Registration{}, err
	}

	o := applyRegisterOptions(opts)
	return t.stage(keyFor[T](route, entity.Invalid, fn), labelFor[T](route, entity.Invalid), func() (func(), error) {
		return bus.AddPostProcessor(t.handler.Bus(), t.handler.Owner(), o.priority, fn)
	})
}

func validate[T any](route message.Route, id entity.ID, nilCallback bool) error {
	if nilCallback {
		return fmt.Errorf("register %s %s: %w", route, message.TypeName[T](), ErrNilCallback)
	}
	if route.Bound() && !id.Valid() {
		return fmt.Errorf("register %s %s: %w", route, message.TypeName[T](), bus.ErrInvalidIdentity)
	}
	return nil
}
