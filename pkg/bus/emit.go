package bus

import (
	"fmt"

	"dxmsg/pkg/chain"
	"dxmsg/pkg/diag"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/message"
)

// EmitUntargeted delivers msg to every type-wide handler of T.
func EmitUntargeted[T message.UntargetedMessage](b *Bus, msg T) {
	dispatch(b, message.CategoryUntargeted, entity.Invalid, msg)
}

// EmitTargeted delivers msg to the handlers bound to target and to every
// target-agnostic observer of T.
func EmitTargeted[T message.TargetedMessage](b *Bus, target entity.ID, msg T) {
	dispatch(b, message.CategoryTargeted, target, msg)
}

// EmitBroadcast delivers msg to the handlers bound to source and to every
// source-agnostic observer of T.
func EmitBroadcast[T message.BroadcastMessage](b *Bus, source entity.ID, msg T) {
	dispatch(b, message.CategoryBroadcast, source, msg)
}

// Emit delivers msg according to its category. id is the target or source
// and is ignored for untargeted messages.
func Emit[T message.Message](b *Bus, msg T, id entity.ID) error {
	if message.IsNil(msg) {
		return fmt.Errorf("emit %s: %w", message.TypeName[T](), ErrNilMessage)
	}

	category := message.CategoryOf[T]()
	switch category {
	case message.CategoryUntargeted:
		id = entity.Invalid
	case message.CategoryTargeted, message.CategoryBroadcast:
		if !id.Valid() {
			return fmt.Errorf("emit %s %s: %w", category, message.TypeName[T](), ErrInvalidIdentity)
		}
	default:
		return fmt.Errorf("emit %s: %w", message.TypeName[T](), ErrUnknownCategory)
	}

	dispatch(b, category, id, msg)
	return nil
}

func dispatch[T message.Message](b *Bus, category message.Category, id entity.ID, msg T) {
	b.emitted.Add(1)
	if b.metrics != nil {
		b.metrics.RecordEmission(category)
	}

	var bound, agnostic *chain.Chain[Callback[T]]

	b.mu.RLock()
	reg, _ := b.types[typeKey[T]()].(*registry[T])
	if reg != nil {
		switch category {
		case message.CategoryUntargeted:
			bound = &reg.untargeted
		case message.CategoryTargeted:
			bound = reg.targeted[id]
			agnostic = &reg.targetedAll
		case message.CategoryBroadcast:
			bound = reg.broadcast[id]
			agnostic = &reg.broadcastAll
		}
	}
	b.mu.RUnlock()

	if reg != nil && !intercept(reg, id, msg) {
		b.vetoed.Add(1)
		if b.metrics != nil {
			b.metrics.RecordVeto(category)
		}
		if b.diagnostics.Load() {
			record(b, category, id, msg, true)
		}
		return
	}
	if b.diagnostics.Load() {
		record(b, category, id, msg, false)
	}

	delivered := 0
	if bound != nil {
		delivered += invoke(bound, id, msg)
	}
	if agnostic != nil {
		delivered += invoke(agnostic, id, msg)
	}
	if globals := b.global.Snapshot(); len(globals) > 0 {
		var boxed message.Message = msg
		for _, entry := range globals {
			if entry.Live() {
				entry.Fn(id, boxed)
				delivered++
			}
		}
	}

	if delivered > 0 {
		b.delivered.Add(uint64(delivered))
		if b.metrics != nil {
			b.metrics.RecordDeliveries(category, delivered)
		}
	}

	if reg != nil {
		for _, entry := range reg.post.Snapshot() {
			if entry.Live() {
				entry.Fn(id, msg)
			}
		}
	}
}

func intercept[T message.Message](reg *registry[T], id entity.ID, msg T) bool {
	for _, entry := range reg.interceptors.Snapshot() {
		if entry.Live() && !entry.Fn(id, msg) {
			return false
		}
	}
	return true
}

func invoke[T any](c *chain.Chain[Callback[T]], id entity.ID, msg T) int {
	n := 0
	for _, entry := range c.Snapshot() {
		if entry.Live() {
			entry.Fn(id, msg)
			n++
		}
	}
	return n
}

// record appends msg to the emission history. Callers check b.diagnostics
// first so a disabled bus never boxes the payload.
func record[T message.Message](b *Bus, category message.Category, id entity.ID, msg T, vetoed bool) {
	if b.history.Cap() == 0 {
		return
	}
	b.history.Push(diag.Emission{
		Type:     message.TypeName[T](),
		Category: category,
		Identity: id,
		At:       b.now(),
		Summary:  diag.Summarize(msg),
		Vetoed:   vetoed,
	})
}
