// Package handler implements the per-owner handler context: an active gate
// plus per-type local handler lists that share one bus-level subscription
// per slot.
//
// A slot is (message type, route, bound identity, priority). The first local
// handler placed in a slot subscribes the slot at the bus; later handlers
// only join the local list. The bus subscription is dropped when the last
// local handler of the slot is removed.
//
// A Handler starts inactive. While inactive its bus subscriptions stay in
// place but never reach local handlers.
//
// A handler holds each callback at most once per message type, route and
// bound identity, whatever the priority. Registering it again fails with
// ErrDuplicateCallback until the first registration is removed.
package handler

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/callback"
	"dxmsg/pkg/chain"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/message"
)

var (
	// ErrInvalidOwner is returned when a handler is created for entity.Invalid.
	ErrInvalidOwner = errors.New("owner identity is not valid")

	// ErrNilBus is returned when a handler is created without a bus.
	ErrNilBus = errors.New("bus cannot be nil")

	// ErrDuplicateCallback is returned when a callback is already registered
	// for the same message type, route and bound identity.
	ErrDuplicateCallback = errors.New("callback already registered")
)

type seenKey struct {
	msgType  reflect.Type
	route    message.Route
	id       entity.ID
	callback callback.Key
}

type slotKey struct {
	route    message.Route
	id       entity.ID
	priority int
}

type slot[T any] struct {
	local       chain.Chain[bus.Callback[T]]
	unsubscribe func()
}

type typedSlots[T any] struct {
	slots map[slotKey]*slot[T]
}

type globalSlot struct {
	local       chain.Chain[bus.GlobalCallback]
	unsubscribe func()
}

// Handler is the handler context of one owner.
type Handler struct {
	owner  entity.ID
	bus    *bus.Bus
	active atomic.Bool

	mu      sync.Mutex
	types   map[reflect.Type]any
	globals map[int]*globalSlot
	seen    map[seenKey]struct{}
	live    int
}

// New creates an inactive handler for owner on b.
func New(owner entity.ID, b *bus.Bus) (*Handler, error) {
	if !owner.Valid() {
		return nil, ErrInvalidOwner
	}
	if b == nil {
		return nil, ErrNilBus
	}

	return &Handler{
		owner:   owner,
		bus:     b,
		types:   make(map[reflect.Type]any),
		globals: make(map[int]*globalSlot),
		seen:    make(map[seenKey]struct{}),
	}, nil
}

// Owner returns the owner identity.
func (h *Handler) Owner() entity.ID { return h.owner }

// Bus returns the bus the handler subscribes on.
func (h *Handler) Bus() *bus.Bus { return h.bus }

// Active reports whether local handlers are invoked.
func (h *Handler) Active() bool { return h.active.Load() }

// SetActive opens or closes the gate.
func (h *Handler) SetActive(active bool) { h.active.Store(active) }

// SubscriptionCount returns the number of live bus-level subscriptions.
func (h *Handler) SubscriptionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// RegisterUntargeted adds fn for every T.
func RegisterUntargeted[T message.UntargetedMessage](h *Handler, priority int, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, nilCallback[T](message.RouteUntargeted)
	}
	return register(h, message.RouteUntargeted, entity.Invalid, priority, callback.Of(fn), func(_ entity.ID, msg T) { fn(msg) })
}

// RegisterTargeted adds fn for every T targeted at target.
func RegisterTargeted[T message.TargetedMessage](h *Handler, target entity.ID, priority int, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, nilCallback[T](message.RouteTargeted)
	}
	return register(h, message.RouteTargeted, target, priority, callback.Of(fn), func(_ entity.ID, msg T) { fn(msg) })
}

// RegisterTargetedWithoutTargeting adds fn for every T whatever its target.
func RegisterTargetedWithoutTargeting[T message.TargetedMessage](h *Handler, priority int, fn func(target entity.ID, msg T)) (func(), error) {
	if fn == nil {
		return nil, nilCallback[T](message.RouteTargetedWithoutTargeting)
	}
	return register(h, message.RouteTargetedWithoutTargeting, entity.Invalid, priority, callback.Of(fn), bus.Callback[T](fn))
}

// RegisterBroadcast adds fn for every T emitted from source.
func RegisterBroadcast[T message.BroadcastMessage](h *Handler, source entity.ID, priority int, fn func(T)) (func(), error) {
	if fn == nil {
		return nil, nilCallback[T](message.RouteBroadcast)
	}
	return register(h, message.RouteBroadcast, source, priority, callback.Of(fn), func(_ entity.ID, msg T) { fn(msg) })
}

// RegisterBroadcastWithoutSource adds fn for every T whatever its source.
func RegisterBroadcastWithoutSource[T message.BroadcastMessage](h *Handler, priority int, fn func(source entity.ID, msg T)) (func(), error) {
	if fn == nil {
		return nil, nilCallback[T](message.RouteBroadcastWithoutSource)
	}
	return register(h, message.RouteBroadcastWithoutSource, entity.Invalid, priority, callback.Of(fn), bus.Callback[T](fn))
}

func nilCallback[T any](route message.Route) error {
	return fmt.Errorf("register %s %s: %w", route, message.TypeName[T](), bus.ErrNilCallback)
}

func duplicate[T any](route message.Route, id entity.ID) error {
	if id.Valid() {
		return fmt.Errorf("register %s %s %s: %w", route, message.TypeName[T](), id, ErrDuplicateCallback)
	}
	return fmt.Errorf("register %s %s: %w", route, message.TypeName[T](), ErrDuplicateCallback)
}

func register[T message.Message](h *Handler, route message.Route, id entity.ID, priority int, cb callback.Key, fn bus.Callback[T]) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := reflect.TypeFor[T]()
	seen := seenKey{msgType: key, route: route, id: id, callback: cb}
	if _, ok := h.seen[seen]; ok {
		return nil, duplicate[T](route, id)
	}
	typed, ok := h.types[key].(*typedSlots[T])
	if !ok {
		typed = &typedSlots[T]{slots: make(map[slotKey]*slot[T])}
		h.types[key] = typed
	}

	sk := slotKey{route: route, id: id, priority: priority}
	s, ok := typed.slots[sk]
	if !ok {
		s = &slot[T]{}
		unsubscribe, err := bus.Subscribe(h.bus, route, h.owner, id, priority, dispatcher(h, s))
		if err != nil {
			return nil, err
		}
		s.unsubscribe = unsubscribe
		typed.slots[sk] = s
		h.live++
	}
	entry := s.local.Add(fn, priority)
	h.seen[seen] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			s.local.Remove(entry)
			delete(h.seen, seen)
			var unsubscribe func()
			if s.local.Empty() && typed.slots[sk] == s {
				delete(typed.slots, sk)
				unsubscribe = s.unsubscribe
				h.live--
			}
			h.mu.Unlock()

			if unsubscribe != nil {
				unsubscribe()
			}
		})
	}, nil
}

func dispatcher[T any](h *Handler, s *slot[T]) bus.Callback[T] {
	return func(id entity.ID, msg T) {
		for _, entry := range s.local.Snapshot() {
			if !h.active.Load() {
				return
			}
			if entry.Live() {
				entry.Fn(id, msg)
			}
		}
	}
}

// RegisterGlobalAcceptAll adds fn for every message of every category.
func RegisterGlobalAcceptAll(h *Handler, priority int, fn bus.GlobalCallback) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("register %s: %w", message.RouteGlobalAcceptAll, bus.ErrNilCallback)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := seenKey{route: message.RouteGlobalAcceptAll, callback: callback.Of(fn)}
	if _, ok := h.seen[seen]; ok {
		return nil, fmt.Errorf("register %s: %w", message.RouteGlobalAcceptAll, ErrDuplicateCallback)
	}

	s, ok := h.globals[priority]
	if !ok {
		s = &globalSlot{}
		unsubscribe, err := bus.RegisterGlobalAcceptAll(h.bus, h.owner, priority, func(id entity.ID, msg message.Message) {
			for _, entry := range s.local.Snapshot() {
				if !h.active.Load() {
					return
				}
				if entry.Live() {
					entry.Fn(id, msg)
				}
			}
		})
		if err != nil {
			return nil, err
		}
		s.unsubscribe = unsubscribe
		h.globals[priority] = s
		h.live++
	}
	entry := s.local.Add(fn, priority)
	h.seen[seen] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			s.local.Remove(entry)
			delete(h.seen, seen)
			var unsubscribe func()
			if s.local.Empty() && h.globals[priority] == s {
				delete(h.globals, priority)
				unsubscribe = s.unsubscribe
				h.live--
			}
			h.mu.Unlock()

			if unsubscribe != nil {
				unsubscribe()
			}
		})
	}, nil
}
