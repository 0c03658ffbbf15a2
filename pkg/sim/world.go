// Package sim runs a small world of actors on a message bus. Every tick the
// world pings all actors, lets one living actor broadcast damage and sends a
// targeted heal to a random actor. Dead actors disable their registration
// token and enable it again when they respawn.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/config"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/handler"
	"dxmsg/pkg/logger"
	"dxmsg/pkg/message"
	"dxmsg/pkg/token"
)

const respawnTicks = 3

// ErrNoActors is returned when a world is configured without actors.
var ErrNoActors = errors.New("world needs at least one actor")

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(w *World) {
		if log != nil {
			w.log = log
		}
	}
}

// Report is a snapshot of the world after a tick.
type Report struct {
	Tick        int
	Actors      []ActorState
	DamageDealt int
	VetoedHeals int
	Observed    map[message.Category]int
	Bus         bus.Stats
}

// World owns the actors and the world-level token carrying the heal
// interceptor, the damage post-processor and a global observer.
type World struct {
	bus   *bus.Bus
	log   *slog.Logger
	rng   *rand.Rand
	ids   entity.Allocator
	self  entity.ID
	token *token.Token

	mu          sync.Mutex
	tick        int
	actors      []*Actor
	byID        map[entity.ID]*Actor
	damageDealt int
	vetoedHeals int
	observed    map[message.Category]int
}

// NewWorld creates cfg.Actors actors on b and enables them.
func NewWorld(b *bus.Bus, cfg config.SimConfig, opts ...Option) (*World, error) {
	if cfg.Actors <= 0 {
		return nil, ErrNoActors
	}

	w := &World{
		bus:      b,
		log:      slog.Default(),
		rng:      rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15)),
		byID:     make(map[entity.ID]*Actor, cfg.Actors),
		observed: make(map[message.Category]int),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.log = logger.For(w.log, logger.ComponentSim)

	w.self = w.ids.Next()
	h, err := handler.New(w.self, b)
	if err != nil {
		return nil, err
	}
	w.token, err = token.New(h, token.WithLogger(w.log))
	if err != nil {
		return nil, err
	}
	if err := w.registerRules(); err != nil {
		return nil, err
	}
	w.token.Enable()

	for range cfg.Actors {
		actor, err := newActor(w.ids.Next(), b, token.WithLogger(w.log))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("create actor: %w", err)
		}
		actor.token.Enable()
		w.actors = append(w.actors, actor)
		w.byID[actor.id] = actor
	}

	w.log.Info("World created", "actors", len(w.actors), "seed", cfg.Seed)
	return w, nil
}

func (w *World) registerRules() error {
	if _, err := token.RegisterInterceptor(w.token, w.allowHeal); err != nil {
		return err
	}
	if _, err := token.RegisterPostProcessor(w.token, w.afterDamage); err != nil {
		return err
	}
	if _, err := token.RegisterGlobalAcceptAll(w.token, w.observe, token.WithPriority(100)); err != nil {
		return err
	}
	return nil
}

// allowHeal vetoes heals aimed at dead or unknown actors.
func (w *World) allowHeal(target entity.ID, _ Heal) bool {
	actor, ok := w.byID[target]
	if ok && actor.Alive() {
		return true
	}
	w.vetoedHeals++
	return false
}

// afterDamage totals delivered damage and takes down actors that ran out of
// health.
func (w *World) afterDamage(source entity.ID, msg Damage) {
	w.damageDealt += msg.Amount
	for _, actor := range w.actors {
		if actor.id == source {
			continue
		}
		if !actor.Alive() && actor.token.Enabled() {
			actor.deaths++
			actor.respawnAt = w.tick + respawnTicks
			actor.token.Disable()
			w.log.Info("Actor down", logger.Identity("actor", actor.id), logger.Identity("by", source), "tick", w.tick)
		}
	}
}

func (w *World) observe(_ entity.ID, msg message.Message) {
	w.observed[msg.Category()]++
}

// Bus returns the bus the world runs on.
func (w *World) Bus() *bus.Bus { return w.bus }

// Actors returns the actor identities in creation order.
func (w *World) Actors() []entity.ID {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]entity.ID, 0, len(w.actors))
	for _, actor := range w.actors {
		ids = append(ids, actor.id)
	}
	return ids
}

// Step advances the world by one tick.
func (w *World) Step() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	w.respawnLocked()

	bus.EmitUntargeted(w.bus, Ping{Tick: w.tick})

	if attacker := w.pickLocked(true); attacker != nil {
		bus.EmitBroadcast(w.bus, attacker.id, Damage{Amount: 10 + w.rng.IntN(21)})
	}

	target := w.actors[w.rng.IntN(len(w.actors))]
	bus.EmitTargeted(w.bus, target.id, Heal{Amount: 5 + w.rng.IntN(11)})

	w.log.Debug("Tick", "tick", w.tick)
}

func (w *World) respawnLocked() {
	for _, actor := range w.actors {
		if actor.Alive() || w.tick < actor.respawnAt {
			continue
		}
		actor.health = maxHealth
		actor.token.Enable()
		w.log.Info("Actor respawned", logger.Identity("actor", actor.id), "tick", w.tick)
	}
}

// pickLocked returns a random actor, only living ones when alive is set.
func (w *World) pickLocked(alive bool) *Actor {
	candidates := w.actors
	if alive {
		candidates = make([]*Actor, 0, len(w.actors))
		for _, actor := range w.actors {
			if actor.Alive() {
				candidates = append(candidates, actor)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[w.rng.IntN(len(candidates))]
}

// Run steps the world every interval until ticks steps have run or ctx is
// done. ticks <= 0 runs until ctx is done. onTick, if set, receives the
// report after every step.
func (w *World) Run(ctx context.Context, ticks int, interval time.Duration, onTick func(Report)) error {
	var tickC <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for i := 0; ticks <= 0 || i < ticks; i++ {
		if tickC != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tickC:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		w.Step()
		if onTick != nil {
			onTick(w.Report())
		}
	}

	return nil
}

// Report returns a snapshot of the world.
func (w *World) Report() Report {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := Report{
		Tick:        w.tick,
		Actors:      make([]ActorState, 0, len(w.actors)),
		DamageDealt: w.damageDealt,
		VetoedHeals: w.vetoedHeals,
		Observed:    make(map[message.Category]int, len(w.observed)),
		Bus:         w.bus.Stats(),
	}
	for _, actor := range w.actors {
		r.Actors = append(r.Actors, actor.state())
	}
	for category, n := range w.observed {
		r.Observed[category] = n
	}
	return r
}

// Close disposes every token of the world.
func (w *World) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, actor := range w.actors {
		actor.token.Dispose()
	}
	w.token.Dispose()
}
