package sim

import (
	"fmt"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/handler"
	"dxmsg/pkg/token"
)

const maxHealth = 100

// Actor is one participant of the world. It owns a handler context and a
// registration token; dying disables the token and respawning enables it.
type Actor struct {
	id    entity.ID
	name  string
	token *token.Token

	health    int
	respawnAt int
	pings     int
	heals     int
	hits      int
	deaths    int
}

// ActorState is a read-only copy of an actor.
type ActorState struct {
	ID     entity.ID
	Name   string
	Health int
	Alive  bool
	Pings  int
	Heals  int
	Hits   int
	Deaths int
}

func newActor(id entity.ID, b *bus.Bus, opts ...token.Option) (*Actor, error) {
	h, err := handler.New(id, b)
	if err != nil {
		return nil, err
	}
	tok, err := token.New(h, opts...)
	if err != nil {
		return nil, err
	}

	a := &Actor{
		id:     id,
		name:   fmt.Sprintf("actor-%d", int64(id)),
		token:  tok,
		health: maxHealth,
	}

	if _, err := token.RegisterUntargeted(tok, a.onPing); err != nil {
		return nil, err
	}
	if _, err := token.RegisterTargeted(tok, id, a.onHeal); err != nil {
		return nil, err
	}
	if _, err := token.RegisterBroadcastWithoutSource(tok, a.onDamage); err != nil {
		return nil, err
	}

	return a, nil
}

// ID returns the actor identity.
func (a *Actor) ID() entity.ID { return a.id }

// Alive reports whether the actor has health left.
func (a *Actor) Alive() bool { return a.health > 0 }

func (a *Actor) onPing(Ping) {
	a.pings++
}

func (a *Actor) onHeal(msg Heal) {
	a.heals++
	a.health = min(a.health+msg.Amount, maxHealth)
}

func (a *Actor) onDamage(source entity.ID, msg Damage) {
	if source == a.id || !a.Alive() {
		return
	}
	a.hits++
	a.health = max(a.health-msg.Amount, 0)
}

func (a *Actor) state() ActorState {
	return ActorState{
		ID:     a.id,
		Name:   a.name,
		Health: a.health,
		Alive:  a.Alive(),
		Pings:  a.pings,
		Heals:  a.heals,
		Hits:   a.hits,
		Deaths: a.deaths,
	}
}
