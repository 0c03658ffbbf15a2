package bus

import (
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"dxmsg/pkg/chain"
	"dxmsg/pkg/diag"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/message"
)

// Callback receives a message of type T. id is the target of a targeted
// message, the source of a broadcast, and entity.Invalid for untargeted ones.
type Callback[T any] func(id entity.ID, msg T)

// Interceptor runs before dispatch. Returning false vetoes the emission.
type Interceptor[T any] func(id entity.ID, msg T) bool

// PostProcessor observes an emission after every handler ran.
type PostProcessor[T any] func(id entity.ID, msg T)

// GlobalCallback observes every emission of every type.
type GlobalCallback func(id entity.ID, msg message.Message)

// Stats is a snapshot of bus counters.
type Stats struct {
	Emitted       uint64
	Vetoed        uint64
	Delivered     uint64
	Subscriptions int64
}

// Bus routes messages to registered callbacks.
type Bus struct {
	name string
	log  *slog.Logger
	now  func() time.Time

	mu     sync.RWMutex
	types  map[reflect.Type]any
	global chain.Chain[GlobalCallback]

	diagnostics   atomic.Bool
	history       *diag.Ring[diag.Emission]
	registrations diag.RegistrationLog
	metrics       *diag.Metrics

	emitted       atomic.Uint64
	vetoed        atomic.Uint64
	delivered     atomic.Uint64
	subscriptions atomic.Int64
}

// registry holds every chain of one message type.
type registry[T message.Message] struct {
	untargeted   chain.Chain[Callback[T]]
	targeted     map[entity.ID]*chain.Chain[Callback[T]]
	targetedAll  chain.Chain[Callback[T]]
	broadcast    map[entity.ID]*chain.Chain[Callback[T]]
	broadcastAll chain.Chain[Callback[T]]

	interceptors chain.Chain[Interceptor[T]]
	post         chain.Chain[PostProcessor[T]]
}

// New creates a bus.
func New(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bus{
		name:    cfg.name,
		log:     logger.For(cfg.logger, logger.ComponentBus).With("bus", cfg.name),
		now:     cfg.clock,
		types:   make(map[reflect.Type]any),
		history: diag.NewRing[diag.Emission](cfg.historyCapacity),
		metrics: cfg.metrics,
	}
	b.diagnostics.Store(cfg.diagnostics)

	return b
}

// Name returns the bus name.
func (b *Bus) Name() string {
	return b.name
}

// Stats returns the current counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Emitted:       b.emitted.Load(),
		Vetoed:        b.vetoed.Load(),
		Delivered:     b.delivered.Load(),
		Subscriptions: b.subscriptions.Load(),
	}
}

// Diagnostics reports whether emission history and registration logging
// are on.
func (b *Bus) Diagnostics() bool {
	return b.diagnostics.Load()
}

// SetDiagnostics turns emission history and registration logging on or off.
func (b *Bus) SetDiagnostics(enabled bool) {
	b.diagnostics.Store(enabled)
}

// History returns the retained emissions, oldest first.
func (b *Bus) History() []diag.Emission {
	return b.history.Items()
}

// HistoryFor returns the retained emissions targeted at or sent from id.
func (b *Bus) HistoryFor(id entity.ID) []diag.Emission {
	var out []diag.Emission
	for _, e := range b.history.Items() {
		if e.Identity == id {
			out = append(out, e)
		}
	}
	return out
}

// ClearHistory drops every retained emission.
func (b *Bus) ClearHistory() {
	b.history.Clear()
}

// SetHistoryCapacity resizes the emission ring buffer.
func (b *Bus) SetHistoryCapacity(capacity int) {
	b.history.Resize(capacity)
}

// RegistrationLog returns the log of bus-level registrations.
func (b *Bus) RegistrationLog() *diag.RegistrationLog {
	return &b.registrations
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// registryLocked returns the registry for T, creating it. b.mu must be held
// for writing.
func registryLocked[T message.Message](b *Bus) *registry[T] {
	key := typeKey[T]()
	if reg, ok := b.types[key].(*registry[T]); ok {
		return reg
	}

	reg := &registry[T]{
		targeted:  make(map[entity.ID]*chain.Chain[Callback[T]]),
		broadcast: make(map[entity.ID]*chain.Chain[Callback[T]]),
	}
	b.types[key] = reg
	return reg
}

// chainLocked returns the handler chain for route, creating bound chains
// on demand. b.mu must be held for writing.
func (r *registry[T]) chainLocked(route message.Route, id entity.ID) *chain.Chain[Callback[T]] {
	switch route {
	case message.RouteUntargeted:
		return &r.untargeted
	case message.RouteTargetedWithoutTargeting:
		return &r.targetedAll
	case message.RouteBroadcastWithoutSource:
		return &r.broadcastAll
	case message.RouteTargeted:
		return boundChain(r.targeted, id)
	case message.RouteBroadcast:
		return boundChain(r.broadcast, id)
	default:
		return nil
	}
}

// releaseLocked drops an emptied bound chain so identities that come and go
// do not accumulate.
func (r *registry[T]) releaseLocked(route message.Route, id entity.ID, c *chain.Chain[Callback[T]]) {
	var bound map[entity.ID]*chain.Chain[Callback[T]]
	switch route {
	case message.RouteTargeted:
		bound = r.targeted
	case message.RouteBroadcast:
		bound = r.broadcast
	default:
		return
	}
	if c.Empty() && bound[id] == c {
		delete(bound, id)
	}
}

func boundChain[T any](bound map[entity.ID]*chain.Chain[Callback[T]], id entity.ID) *chain.Chain[Callback[T]] {
	c, ok := bound[id]
	if !ok {
		c = &chain.Chain[Callback[T]]{}
		bound[id] = c
	}
	return c
}
