package bus

import (
	"fmt"
	"sync"

	"dxmsg/pkg/diag"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/message"
)

// Subscribe adds fn to the chain selected by route. id is the bound identity
// for RouteTargeted and RouteBroadcast and is ignored otherwise. owner is
// recorded in the registration log. The returned func removes the
// subscription; calling it more than once is a no-op.
func Subscribe[T message.Message](b *Bus, route message.Route, owner, id entity.ID, priority int, fn Callback[T]) (func(), error) {
	typeName := message.TypeName[T]()
	if fn == nil {
		return nil, fmt.Errorf("subscribe %s %s: %w", route, typeName, ErrNilCallback)
	}
	if route.Category() != message.CategoryOf[T]() {
		return nil, fmt.Errorf("subscribe %s %s: %w", route, typeName, ErrRouteMismatch)
	}
	if route.Bound() && !id.Valid() {
		return nil, fmt.Errorf("subscribe %s %s: %w", route, typeName, ErrInvalidIdentity)
	}

	b.mu.Lock()
	reg := registryLocked[T](b)
	c := reg.chainLocked(route, id)
	entry := c.Add(fn, priority)
	b.mu.Unlock()

	b.subscribed(owner, typeName, route, message.CategoryOf[T](), priority)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			removed := c.Remove(entry)
			reg.releaseLocked(route, id, c)
			b.mu.Unlock()

			if removed {
				b.unsubscribed(owner, typeName, route, message.CategoryOf[T](), priority)
			}
		})
	}, nil
}

// RegisterUntargeted subscribes fn to every T.
func RegisterUntargeted[T message.UntargetedMessage](b *Bus, owner entity.ID, priority int, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("register untargeted %s: %w", message.TypeName[T](), ErrNilCallback)
	}
	return Subscribe(b, message.RouteUntargeted, owner, entity.Invalid, priority, func(_ entity.ID, msg T) { fn(msg) })
}

// RegisterTargeted subscribes fn to every T targeted at target.
func RegisterTargeted[T message.TargetedMessage](b *Bus, owner, target entity.ID, priority int, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("register targeted %s: %w", message.TypeName[T](), ErrNilCallback)
	}
	return Subscribe(b, message.RouteTargeted, owner, target, priority, func(_ entity.ID, msg T) { fn(msg) })
}

// RegisterTargetedWithoutTargeting subscribes fn to every T whatever its
// target. fn receives the target.
func RegisterTargetedWithoutTargeting[T message.TargetedMessage](b *Bus, owner entity.ID, priority int, fn func(target entity.ID, msg T)) (func(), error) {
	return Subscribe(b, message.RouteTargetedWithoutTargeting, owner, entity.Invalid, priority, Callback[T](fn))
}

// RegisterBroadcast subscribes fn to every T emitted from source.
func RegisterBroadcast[T message.BroadcastMessage](b *Bus, owner, source entity.ID, priority int, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("register broadcast %s: %w", message.TypeName[T](), ErrNilCallback)
	}
	return Subscribe(b, message.RouteBroadcast, owner, source, priority, func(_ entity.ID, msg T) { fn(msg) })
}

// RegisterBroadcastWithoutSource subscribes fn to every T whatever its
// source. fn receives the source.
func RegisterBroadcastWithoutSource[T message.BroadcastMessage](b *Bus, owner entity.ID, priority int, fn func(source entity.ID, msg T)) (func(), error) {
	return Subscribe(b, message.RouteBroadcastWithoutSource, owner, entity.Invalid, priority, Callback[T](fn))
}

// RegisterGlobalAcceptAll subscribes fn to every emission of every type. It
// runs after the type's own handlers.
func RegisterGlobalAcceptAll(b *Bus, owner entity.ID, priority int, fn GlobalCallback) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("register global accept-all: %w", ErrNilCallback)
	}

	b.mu.Lock()
	entry := b.global.Add(fn, priority)
	b.mu.Unlock()

	const typeName = "*"
	b.subscribed(owner, typeName, message.RouteGlobalAcceptAll, 0, priority)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			removed := b.global.Remove(entry)
			b.mu.Unlock()

			if removed {
				b.unsubscribed(owner, typeName, message.RouteGlobalAcceptAll, 0, priority)
			}
		})
	}, nil
}

// AddInterceptor registers fn to run before dispatch of every T.
func AddInterceptor[T message.Message](b *Bus, owner entity.ID, priority int, fn Interceptor[T]) (func(), error) {
	typeName := message.TypeName[T]()
	if fn == nil {
		return nil, fmt.Errorf("add interceptor %s: %w", typeName, ErrNilCallback)
	}

	b.mu.Lock()
	reg := registryLocked[T](b)
	entry := reg.interceptors.Add(fn, priority)
	b.mu.Unlock()

	b.subscribed(owner, typeName, message.RouteInterceptor, message.CategoryOf[T](), priority)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			removed := reg.interceptors.Remove(entry)
			b.mu.Unlock()

			if removed {
				b.unsubscribed(owner, typeName, message.RouteInterceptor, message.CategoryOf[T](), priority)
			}
		})
	}, nil
}

// AddPostProcessor registers fn to run after dispatch of every T that was
// not vetoed.
func AddPostProcessor[T message.Message](b *Bus, owner entity.ID, priority int, fn PostProcessor[T]) (func(), error) {
	typeName := message.TypeName[T]()
	if fn == nil {
		return nil, fmt.Errorf("add post-processor %s: %w", typeName, ErrNilCallback)
	}

	b.mu.Lock()
	reg := registryLocked[T](b)
	entry := reg.post.Add(fn, priority)
	b.mu.Unlock()

	b.subscribed(owner, typeName, message.RoutePostProcessor, message.CategoryOf[T](), priority)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			removed := reg.post.Remove(entry)
			b.mu.Unlock()

			if removed {
				b.unsubscribed(owner, typeName, message.RoutePostProcessor, message.CategoryOf[T](), priority)
			}
		})
	}, nil
}

func (b *Bus) subscribed(owner entity.ID, typeName string, route message.Route, category message.Category, priority int) {
	b.subscriptions.Add(1)
	if b.metrics != nil {
		b.metrics.SubscriptionAdded()
	}
	b.log.Debug("Subscribed", logger.Owner(owner), logger.Type(typeName), logger.Route(route), "priority", priority)
	b.logRegistration(owner, typeName, diag.KindRegister, route, category, priority)
}

func (b *Bus) unsubscribed(owner entity.ID, typeName string, route message.Route, category message.Category, priority int) {
	b.subscriptions.Add(-1)
	if b.metrics != nil {
		b.metrics.SubscriptionRemoved()
	}
	b.log.Debug("Unsubscribed", logger.Owner(owner), logger.Type(typeName), logger.Route(route), "priority", priority)
	b.logRegistration(owner, typeName, diag.KindDeregister, route, category, priority)
}

func (b *Bus) logRegistration(owner entity.ID, typeName string, kind diag.Kind, route message.Route, category message.Category, priority int) {
	if !b.diagnostics.Load() {
		return
	}
	b.registrations.Log(diag.Registration{
		Owner:       owner,
		MessageType: typeName,
		Kind:        kind,
		Route:       route,
		Category:    category,
		Priority:    priority,
		At:          b.now(),
	})
}
