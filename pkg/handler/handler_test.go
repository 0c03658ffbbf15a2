package handler

import (
	"errors"
	"testing"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/message"
)

type ping struct {
	message.Untargeted
}

type heal struct {
	message.Targeted
	Amount int
}

type damage struct {
	message.Broadcast
	Amount int
}

func newActive(t *testing.T, owner entity.ID, b *bus.Bus) *Handler {
	t.Helper()

	h, err := New(owner, b)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.SetActive(true)
	return h
}

func TestNewValidates(t *testing.T) {
	if _, err := New(entity.Invalid, bus.New()); !errors.Is(err, ErrInvalidOwner) {
		t.Fatalf("New(invalid) error = %v, want %v", err, ErrInvalidOwner)
	}
	if _, err := New(1, nil); !errors.Is(err, ErrNilBus) {
		t.Fatalf("New(nil bus) error = %v, want %v", err, ErrNilBus)
	}

	h, err := New(3, bus.New())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if h.Active() {
		t.Fatal("new handler is active, want inactive")
	}
	if h.Owner() != 3 {
		t.Fatalf("Owner() = %v, want 3", h.Owner())
	}
}

func TestInactiveHandlerIsSilent(t *testing.T) {
	b := bus.New()
	h, err := New(1, b)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	calls := 0
	if _, err := RegisterUntargeted(h, 0, func(ping) { calls++ }); err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}

	bus.EmitUntargeted(b, ping{})
	if calls != 0 {
		t.Fatalf("calls while inactive = %d, want 0", calls)
	}
	if h.SubscriptionCount() != 1 {
		t.Fatalf("SubscriptionCount() = %d, want 1", h.SubscriptionCount())
	}

	h.SetActive(true)
	bus.EmitUntargeted(b, ping{})
	if calls != 1 {
		t.Fatalf("calls after activation = %d, want 1", calls)
	}

	h.SetActive(false)
	bus.EmitUntargeted(b, ping{})
	if calls != 1 {
		t.Fatalf("calls after deactivation = %d, want 1", calls)
	}
}

func TestSharedSlotSubscribesOnce(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)

	var order []string
	first, err := RegisterUntargeted(h, 5, func(ping) { order = append(order, "first") })
	if err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}
	second, err := RegisterUntargeted(h, 5, func(ping) { order = append(order, "second") })
	if err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}

	if got := h.SubscriptionCount(); got != 1 {
		t.Fatalf("SubscriptionCount() = %d, want 1", got)
	}
	if got := b.Stats().Subscriptions; got != 1 {
		t.Fatalf("bus subscriptions = %d, want 1", got)
	}

	bus.EmitUntargeted(b, ping{})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}

	first()
	if got := b.Stats().Subscriptions; got != 1 {
		t.Fatalf("bus subscriptions after first removal = %d, want 1", got)
	}

	second()
	second()
	if got := h.SubscriptionCount(); got != 0 {
		t.Fatalf("SubscriptionCount() after removal = %d, want 0", got)
	}
	if got := b.Stats().Subscriptions; got != 0 {
		t.Fatalf("bus subscriptions after removal = %d, want 0", got)
	}
}

func TestPrioritiesAcrossSlots(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)

	var order []int
	for _, priority := range []int{10, -3, 0} {
		if _, err := RegisterUntargeted(h, priority, func(ping) { order = append(order, priority) }); err != nil {
			t.Fatalf("RegisterUntargeted(%d) error = %v", priority, err)
		}
	}

	bus.EmitUntargeted(b, ping{})
	want := []int{-3, 0, 10}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if got := h.SubscriptionCount(); got != 3 {
		t.Fatalf("SubscriptionCount() = %d, want 3", got)
	}
}

func TestTargetedAndBroadcastRoutes(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)

	healed := 0
	if _, err := RegisterTargeted(h, 7, 0, func(msg heal) { healed += msg.Amount }); err != nil {
		t.Fatalf("RegisterTargeted() error = %v", err)
	}
	var anyTarget []entity.ID
	if _, err := RegisterTargetedWithoutTargeting(h, 0, func(target entity.ID, _ heal) { anyTarget = append(anyTarget, target) }); err != nil {
		t.Fatalf("RegisterTargetedWithoutTargeting() error = %v", err)
	}
	hurt := 0
	if _, err := RegisterBroadcast(h, 8, 0, func(msg damage) { hurt += msg.Amount }); err != nil {
		t.Fatalf("RegisterBroadcast() error = %v", err)
	}
	var sources []entity.ID
	if _, err := RegisterBroadcastWithoutSource(h, 0, func(source entity.ID, _ damage) { sources = append(sources, source) }); err != nil {
		t.Fatalf("RegisterBroadcastWithoutSource() error = %v", err)
	}

	bus.EmitTargeted(b, 7, heal{Amount: 2})
	bus.EmitTargeted(b, 9, heal{Amount: 5})
	bus.EmitBroadcast(b, 8, damage{Amount: 3})
	bus.EmitBroadcast(b, 4, damage{Amount: 1})

	if healed != 2 {
		t.Fatalf("healed = %d, want 2", healed)
	}
	if len(anyTarget) != 2 || anyTarget[0] != 7 || anyTarget[1] != 9 {
		t.Fatalf("targets = %v, want [7 9]", anyTarget)
	}
	if hurt != 3 {
		t.Fatalf("hurt = %d, want 3", hurt)
	}
	if len(sources) != 2 || sources[0] != 8 || sources[1] != 4 {
		t.Fatalf("sources = %v, want [8 4]", sources)
	}
}

func TestGlobalAcceptAll(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)

	var seen []message.Category
	remove, err := RegisterGlobalAcceptAll(h, 0, func(_ entity.ID, msg message.Message) {
		seen = append(seen, msg.Category())
	})
	if err != nil {
		t.Fatalf("RegisterGlobalAcceptAll() error = %v", err)
	}

	bus.EmitUntargeted(b, ping{})
	bus.EmitTargeted(b, 2, heal{})
	bus.EmitBroadcast(b, 3, damage{})
	if len(seen) != 3 {
		t.Fatalf("seen = %v, want 3 categories", seen)
	}

	remove()
	bus.EmitUntargeted(b, ping{})
	if len(seen) != 3 {
		t.Fatalf("seen after removal = %v, want 3 entries", seen)
	}
	if h.SubscriptionCount() != 0 {
		t.Fatalf("SubscriptionCount() = %d, want 0", h.SubscriptionCount())
	}
}

func TestRegistrationErrors(t *testing.T) {
	h := newActive(t, 1, bus.New())

	if _, err := RegisterUntargeted[ping](h, 0, nil); !errors.Is(err, bus.ErrNilCallback) {
		t.Fatalf("nil callback error = %v, want %v", err, bus.ErrNilCallback)
	}
	if _, err := RegisterTargeted(h, entity.Invalid, 0, func(heal) {}); !errors.Is(err, bus.ErrInvalidIdentity) {
		t.Fatalf("invalid target error = %v, want %v", err, bus.ErrInvalidIdentity)
	}
	if _, err := RegisterGlobalAcceptAll(h, 0, nil); !errors.Is(err, bus.ErrNilCallback) {
		t.Fatalf("nil global error = %v, want %v", err, bus.ErrNilCallback)
	}
	if h.SubscriptionCount() != 0 {
		t.Fatalf("SubscriptionCount() = %d, want 0", h.SubscriptionCount())
	}
}

func TestDeactivateDuringEmission(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)

	calls := 0
	if _, err := RegisterUntargeted(h, 0, func(ping) {
		calls++
		h.SetActive(false)
	}); err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}
	if _, err := RegisterUntargeted(h, 0, func(ping) { calls++ }); err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}

	bus.EmitUntargeted(b, ping{})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

type counter struct {
	pings int
}

func (c *counter) onPing(ping) { c.pings++ }

func onPingTopLevel(ping) {}

func TestDuplicateCallbackRejected(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)
	c := &counter{}

	remove, err := RegisterUntargeted(h, 0, c.onPing)
	if err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}
	if _, err := RegisterUntargeted(h, 0, c.onPing); !errors.Is(err, ErrDuplicateCallback) {
		t.Fatalf("second RegisterUntargeted() error = %v, want %v", err, ErrDuplicateCallback)
	}
	if _, err := RegisterUntargeted(h, 9, c.onPing); !errors.Is(err, ErrDuplicateCallback) {
		t.Fatalf("RegisterUntargeted() at other priority error = %v, want %v", err, ErrDuplicateCallback)
	}

	bus.EmitUntargeted(b, ping{})
	if c.pings != 1 {
		t.Fatalf("pings = %d, want 1", c.pings)
	}
	if got := b.Stats().Subscriptions; got != 1 {
		t.Fatalf("bus subscriptions = %d, want 1", got)
	}

	remove()
	if _, err := RegisterUntargeted(h, 0, c.onPing); err != nil {
		t.Fatalf("RegisterUntargeted() after removal error = %v", err)
	}
}

func TestDuplicateScopedByRouteAndIdentity(t *testing.T) {
	b := bus.New()
	h := newActive(t, 1, b)

	if _, err := RegisterUntargeted(h, 0, onPingTopLevel); err != nil {
		t.Fatalf("RegisterUntargeted() error = %v", err)
	}
	if _, err := RegisterUntargeted(h, 0, onPingTopLevel); !errors.Is(err, ErrDuplicateCallback) {
		t.Fatalf("second RegisterUntargeted() error = %v, want %v", err, ErrDuplicateCallback)
	}

	onHeal := func(heal) {}
	if _, err := RegisterTargeted(h, 7, 0, onHeal); err != nil {
		t.Fatalf("RegisterTargeted(7) error = %v", err)
	}
	if _, err := RegisterTargeted(h, 8, 0, onHeal); err != nil {
		t.Fatalf("RegisterTargeted(8) error = %v", err)
	}
	if _, err := RegisterTargeted(h, 7, 0, onHeal); !errors.Is(err, ErrDuplicateCallback) {
		t.Fatalf("RegisterTargeted(7) again error = %v, want %v", err, ErrDuplicateCallback)
	}

	other := newActive(t, 2, b)
	if _, err := RegisterUntargeted(other, 0, onPingTopLevel); err != nil {
		t.Fatalf("RegisterUntargeted() on other owner error = %v", err)
	}

	global := func(entity.ID, message.Message) {}
	if _, err := RegisterGlobalAcceptAll(h, 0, global); err != nil {
		t.Fatalf("RegisterGlobalAcceptAll() error = %v", err)
	}
	if _, err := RegisterGlobalAcceptAll(h, 3, global); !errors.Is(err, ErrDuplicateCallback) {
		t.Fatalf("second RegisterGlobalAcceptAll() error = %v, want %v", err, ErrDuplicateCallback)
	}
}
