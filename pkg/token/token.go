// Package token implements the registration token: the owner-facing staging
// area that collects handler registrations and activates or deactivates them
// as a group.
//
// Registrations are staged while the token is disabled and go live on Enable.
// A registration staged while enabled goes live at once. Disable removes every
// live registration from the bus but keeps them staged, so the next Enable
// restores them. Dispose drops everything for good.
//
// A Token is safe for concurrent use, but its methods must not be called
// concurrently with Enable or Disable of the same token from inside a
// callback running on another goroutine.
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/callback"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/handler"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/message"
)

var (
	// ErrNilHandler is returned when a token is created without a handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilCallback is returned when a registration has no callback.
	ErrNilCallback = bus.ErrNilCallback

	// ErrDisposed is returned when registering on a disposed token.
	ErrDisposed = errors.New("token is disposed")
)

// Registration identifies one staged registration. The zero value identifies
// nothing.
type Registration struct {
	id uint64
}

// Valid reports whether r was returned by a successful registration.
func (r Registration) Valid() bool { return r.id != 0 }

type dedupeKey struct {
	route    message.Route
	msgType  reflect.Type
	id       entity.ID
	callback callback.Key
}

type staged struct {
	reg        Registration
	key        dedupeKey
	label      string
	activate   func() (func(), error)
	deregister func()
}

// Token groups the registrations of one owner.
type Token struct {
	handler *handler.Handler
	log     *slog.Logger

	mu       sync.Mutex
	enabled  bool
	disposed bool
	nextID   uint64
	order    []*staged
	byKey    map[dedupeKey]*staged
}

// New creates a disabled token on h.
func New(h *handler.Handler, opts ...Option) (*Token, error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	t := &Token{
		handler: h,
		byKey:   make(map[dedupeKey]*staged),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	t.log = logger.For(t.log, logger.ComponentToken).With(logger.Owner(h.Owner()))

	return t, nil
}

// Handler returns the handler the token registers through.
func (t *Token) Handler() *handler.Handler { return t.handler }

// Enabled reports whether staged registrations are live.
func (t *Token) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Len returns the number of staged registrations.
func (t *Token) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Enable activates the handler and every staged registration that is not
// live yet. Enabling an enabled token is a no-op.
func (t *Token) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disposed {
		t.log.Warn("Enable on disposed token ignored")
		return
	}
	if t.enabled {
		t.log.Debug("Token already enabled")
		return
	}

	t.enabled = true
	t.handler.SetActive(true)
	for _, s := range t.order {
		t.activateLocked(s)
	}
	t.log.Debug("Token enabled", "registrations", len(t.order))
}

// Disable deactivates the handler and removes every live registration from
// the bus. Staged registrations are kept. Disabling a disabled token is a
// no-op.
func (t *Token) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		t.log.Debug("Token already disabled")
		return
	}

	t.enabled = false
	t.handler.SetActive(false)
	for _, s := range t.order {
		deactivate(s)
	}
	t.log.Debug("Token disabled", "registrations", len(t.order))
}

// Remove unstages r and removes it from the bus if live. It reports whether
// r was staged.
func (t *Token) Remove(r Registration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.order {
		if s.reg != r {
			continue
		}
		deactivate(s)
		t.order = append(t.order[:i], t.order[i+1:]...)
		delete(t.byKey, s.key)
		t.log.Debug("Registration removed", "registration", s.label)
		return true
	}

	return false
}

// Dispose disables the token and drops every staged registration. Later
// registrations fail with ErrDisposed.
func (t *Token) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disposed {
		return
	}

	if t.enabled {
		t.enabled = false
		t.handler.SetActive(false)
	}
	for _, s := range t.order {
		deactivate(s)
	}
	t.order = nil
	clear(t.byKey)
	t.disposed = true
	t.log.Debug("Token disposed")
}

func (t *Token) activateLocked(s *staged) {
	if s.deregister != nil {
		return
	}

	deregister, err := s.activate()
	if err != nil {
		t.log.Error("Activate registration failed", "registration", s.label, logger.Err(err))
		return
	}
	s.deregister = deregister
}

func deactivate(s *staged) {
	if s.deregister == nil {
		return
	}
	deregister := s.deregister
	s.deregister = nil
	deregister()
}

func (t *Token) stage(key dedupeKey, label string, activate func() (func(), error)) (Registration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.disposed {
		return Registration{}, fmt.Errorf("register %s: %w", label, ErrDisposed)
	}
	if existing, ok := t.byKey[key]; ok {
		t.log.Warn("Duplicate registration ignored", "registration", label)
		return existing.reg, nil
	}

	t.nextID++
	s := &staged{
		reg:      Registration{id: t.nextID},
		key:      key,
		label:    label,
		activate: activate,
	}
	t.order = append(t.order, s)
	t.byKey[key] = s

	if t.enabled {
		t.activateLocked(s)
	}

	return s.reg, nil
}

func keyFor[T any, F any](route message.Route, id entity.ID, fn F) dedupeKey {
	return dedupeKey{
		route:    route,
		msgType:  reflect.TypeFor[T](),
		id:       id,
		callback: callback.Of(fn),
	}
}

func labelFor[T any](route message.Route, id entity.ID) string {
	if id.Valid() {
		return fmt.Sprintf("%s %s %s", route, message.TypeName[T](), id)
	}
	return fmt.Sprintf("%s %s", route, message.TypeName[T]())
}
