package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dxmsg/pkg/bus"
	"dxmsg/pkg/config"
	"dxmsg/pkg/entity"
	"dxmsg/pkg/handler"
	"dxmsg/pkg/logger"
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

func newToken(t *testing.T, owner entity.ID, b *bus.Bus, opts ...Option) *Token {
	t.Helper()

	h, err := handler.New(owner, b)
	require.NoError(t, err)
	tok, err := New(h, opts...)
	require.NoError(t, err)
	return tok
}

func jsonLogger(t *testing.T, out *bytes.Buffer) Option {
	t.Helper()

	t.Setenv("DXMSG_LOG_FORMAT", "json")
	t.Setenv("DXMSG_LOG_LEVEL", "debug")
	log, err := logger.NewWithWriter(config.LoggingConfig{}, out)
	require.NoError(t, err)
	return WithLogger(log)
}

func countMessages(t *testing.T, out *bytes.Buffer, message string) int {
	t.Helper()

	count := 0
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var entry logger.Entry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == message {
			count++
		}
	}
	return count
}

func TestNewRejectsNilHandler(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrNilHandler)
}

func TestStagedUntilEnable(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)

	calls := 0
	_, err := RegisterUntargeted(tok, func(ping) { calls++ })
	require.NoError(t, err)
	require.Equal(t, 1, tok.Len())
	require.Zero(t, b.Stats().Subscriptions)

	bus.EmitUntargeted(b, ping{})
	require.Zero(t, calls)

	tok.Enable()
	require.True(t, tok.Enabled())
	require.EqualValues(t, 1, b.Stats().Subscriptions)

	bus.EmitUntargeted(b, ping{})
	require.Equal(t, 1, calls)
}

func TestPriorityOrderScenario(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)

	var order []string
	_, err := RegisterUntargeted(tok, func(ping) { order = append(order, "B") }, WithPriority(10))
	require.NoError(t, err)
	_, err = RegisterUntargeted(tok, func(ping) { order = append(order, "A") }, WithPriority(0))
	require.NoError(t, err)
	tok.Enable()

	bus.EmitUntargeted(b, ping{})
	require.Equal(t, []string{"A", "B"}, order)
}

func TestEnableDisableEnableRestoresSameSet(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 3, b)

	var got []string
	_, err := RegisterUntargeted(tok, func(ping) { got = append(got, "ping") })
	require.NoError(t, err)
	_, err = RegisterTargeted(tok, 3, func(heal) { got = append(got, "heal") })
	require.NoError(t, err)
	_, err = RegisterBroadcastWithoutSource(tok, func(entity.ID, damage) { got = append(got, "damage") })
	require.NoError(t, err)

	emitAll := func() []string {
		got = nil
		bus.EmitUntargeted(b, ping{})
		bus.EmitTargeted(b, 3, heal{})
		bus.EmitBroadcast(b, 9, damage{})
		return got
	}

	tok.Enable()
	first := emitAll()
	subscriptions := b.Stats().Subscriptions

	tok.Disable()
	require.Empty(t, emitAll())
	require.Zero(t, b.Stats().Subscriptions)

	tok.Enable()
	require.Equal(t, first, emitAll())
	require.Equal(t, subscriptions, b.Stats().Subscriptions)
	require.Equal(t, []string{"ping", "heal", "damage"}, first)
}

func countPing(ping) { pingCount++ }

var pingCount int

func TestDuplicateRegistrationIsLoggedNoOp(t *testing.T) {
	var out bytes.Buffer
	b := bus.New()
	tok := newToken(t, 1, b, jsonLogger(t, &out))

	pingCount = 0
	first, err := RegisterUntargeted(tok, countPing)
	require.NoError(t, err)
	second, err := RegisterUntargeted(tok, countPing)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, tok.Len())

	tok.Enable()
	bus.EmitUntargeted(b, ping{})
	require.Equal(t, 1, pingCount)
	require.Equal(t, 1, countMessages(t, &out, "Duplicate registration ignored"))
}

func TestSameClosureValueIsDuplicate(t *testing.T) {
	tok := newToken(t, 1, bus.New())

	fn := func(heal) {}
	_, err := RegisterTargeted(tok, 2, fn)
	require.NoError(t, err)
	_, err = RegisterTargeted(tok, 2, fn)
	require.NoError(t, err)
	require.Equal(t, 1, tok.Len())

	// A different bound identity is a different registration.
	_, err = RegisterTargeted(tok, 4, fn)
	require.NoError(t, err)
	require.Equal(t, 2, tok.Len())
}

func TestDistinctClosuresAreNotDuplicates(t *testing.T) {
	tok := newToken(t, 1, bus.New())

	calls := make([]int, 3)
	for i := range calls {
		_, err := RegisterUntargeted(tok, func(ping) { calls[i]++ })
		require.NoError(t, err)
	}
	require.Equal(t, 3, tok.Len())
}

type listener struct {
	pings int
}

func (l *listener) onPing(ping) { l.pings++ }

func TestMethodValueIsDuplicate(t *testing.T) {
	var out bytes.Buffer
	b := bus.New()
	tok := newToken(t, 1, b, jsonLogger(t, &out))
	l := &listener{}

	first, err := RegisterUntargeted(tok, l.onPing)
	require.NoError(t, err)
	second, err := RegisterUntargeted(tok, l.onPing, WithPriority(5))
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, tok.Len())

	tok.Enable()
	bus.EmitUntargeted(b, ping{})
	require.Equal(t, 1, l.pings)
	require.Equal(t, 1, countMessages(t, &out, "Duplicate registration ignored"))

	// Late duplicates while enabled are still no-ops.
	_, err = RegisterUntargeted(tok, l.onPing)
	require.NoError(t, err)
	bus.EmitUntargeted(b, ping{})
	require.Equal(t, 2, l.pings)
	require.Equal(t, 2, countMessages(t, &out, "Duplicate registration ignored"))
}

func TestSharedCodeCallbacksAreDistinct(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)
	l, other := &listener{}, &listener{}

	_, err := RegisterUntargeted(tok, l.onPing)
	require.NoError(t, err)
	_, err = RegisterUntargeted(tok, func(m ping) { l.onPing(m) })
	require.NoError(t, err)
	_, err = RegisterUntargeted(tok, other.onPing)
	require.NoError(t, err)
	require.Equal(t, 3, tok.Len())

	tok.Enable()
	bus.EmitUntargeted(b, ping{})
	require.Equal(t, 2, l.pings)
	require.Equal(t, 1, other.pings)
}

func TestDuplicateLogCarriesOwner(t *testing.T) {
	var out bytes.Buffer
	tok := newToken(t, 9, bus.New(), jsonLogger(t, &out))
	l := &listener{}

	_, err := RegisterUntargeted(tok, l.onPing)
	require.NoError(t, err)
	_, err = RegisterUntargeted(tok, l.onPing)
	require.NoError(t, err)

	var entry logger.Entry
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == "Duplicate registration ignored" {
			break
		}
	}
	require.Equal(t, "Duplicate registration ignored", entry.Message)
	require.Equal(t, logger.ComponentToken, entry.Component)
	require.EqualValues(t, 9, entry.Owner)
	require.Equal(t, "warn", entry.Level)
}

func TestDoubleEnableAndDisableAreNoOps(t *testing.T) {
	var out bytes.Buffer
	b := bus.New()
	tok := newToken(t, 1, b, jsonLogger(t, &out))

	_, err := RegisterUntargeted(tok, func(ping) {})
	require.NoError(t, err)

	tok.Disable()
	require.Zero(t, b.Stats().Subscriptions)

	tok.Enable()
	tok.Enable()
	require.EqualValues(t, 1, b.Stats().Subscriptions)

	tok.Disable()
	tok.Disable()
	require.Zero(t, b.Stats().Subscriptions)

	require.Equal(t, 1, countMessages(t, &out, "Token already enabled"))
	require.Equal(t, 2, countMessages(t, &out, "Token already disabled"))
}

func TestLateRegistrationActivatesImmediately(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)
	tok.Enable()

	calls := 0
	_, err := RegisterUntargeted(tok, func(ping) { calls++ })
	require.NoError(t, err)

	bus.EmitUntargeted(b, ping{})
	require.Equal(t, 1, calls)
}

func TestRemoveSingleRegistration(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)

	var order []string
	keep, err := RegisterUntargeted(tok, func(ping) { order = append(order, "keep") })
	require.NoError(t, err)
	drop, err := RegisterUntargeted(tok, func(ping) { order = append(order, "drop") })
	require.NoError(t, err)
	tok.Enable()

	require.True(t, tok.Remove(drop))
	require.False(t, tok.Remove(drop))
	require.False(t, tok.Remove(Registration{}))
	require.EqualValues(t, 1, b.Stats().Subscriptions)

	bus.EmitUntargeted(b, ping{})
	require.Equal(t, []string{"keep"}, order)

	require.True(t, tok.Remove(keep))
	require.Zero(t, b.Stats().Subscriptions)
	require.Zero(t, tok.Len())
}

func TestTargetedIsolationScenario(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 7, b)

	calls := 0
	_, err := RegisterTargeted(tok, 7, func(heal) { calls++ })
	require.NoError(t, err)
	var observed []entity.ID
	_, err = RegisterTargetedWithoutTargeting(tok, func(target entity.ID, _ heal) { observed = append(observed, target) })
	require.NoError(t, err)
	tok.Enable()

	bus.EmitTargeted(b, 8, heal{Amount: 1})
	require.Zero(t, calls)
	require.Equal(t, []entity.ID{8}, observed)
}

func TestInterceptorAndPostProcessor(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)

	handled, post := 0, 0
	_, err := RegisterBroadcast(tok, 5, func(damage) { handled++ })
	require.NoError(t, err)
	_, err = RegisterPostProcessor(tok, func(entity.ID, damage) { post++ })
	require.NoError(t, err)
	_, err = RegisterInterceptor(tok, func(_ entity.ID, msg damage) bool { return msg.Amount > 0 })
	require.NoError(t, err)
	tok.Enable()

	bus.EmitBroadcast(b, 5, damage{Amount: 0})
	require.Zero(t, handled)
	require.Zero(t, post)

	bus.EmitBroadcast(b, 5, damage{Amount: 2})
	require.Equal(t, 1, handled)
	require.Equal(t, 1, post)

	tok.Disable()
	bus.EmitBroadcast(b, 5, damage{Amount: 0})
	require.EqualValues(t, 2, b.Stats().Emitted-b.Stats().Vetoed)
}

func TestGlobalAcceptAll(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)

	var seen []message.Category
	_, err := RegisterGlobalAcceptAll(tok, func(_ entity.ID, msg message.Message) { seen = append(seen, msg.Category()) })
	require.NoError(t, err)
	tok.Enable()

	bus.EmitUntargeted(b, ping{})
	bus.EmitTargeted(b, 2, heal{})
	bus.EmitBroadcast(b, 2, damage{})
	require.Equal(t, []message.Category{message.CategoryUntargeted, message.CategoryTargeted, message.CategoryBroadcast}, seen)
}

func TestDisposeDropsEverything(t *testing.T) {
	b := bus.New()
	tok := newToken(t, 1, b)

	_, err := RegisterUntargeted(tok, func(ping) {})
	require.NoError(t, err)
	tok.Enable()

	tok.Dispose()
	tok.Dispose()
	require.False(t, tok.Enabled())
	require.False(t, tok.Handler().Active())
	require.Zero(t, tok.Len())
	require.Zero(t, b.Stats().Subscriptions)

	_, err = RegisterUntargeted(tok, func(ping) {})
	require.ErrorIs(t, err, ErrDisposed)

	tok.Enable()
	require.False(t, tok.Enabled())
}

func TestRegistrationValidation(t *testing.T) {
	tok := newToken(t, 1, bus.New())

	tests := []struct {
		name string
		err  error
		run  func() error
	}{
		{
			name: "nil untargeted",
			err:  ErrNilCallback,
			run: func() error {
				_, err := RegisterUntargeted[ping](tok, nil)
				return err
			},
		},
		{
			name: "nil interceptor",
			err:  ErrNilCallback,
			run: func() error {
				_, err := RegisterInterceptor[ping](tok, nil)
				return err
			},
		},
		{
			name: "nil global",
			err:  ErrNilCallback,
			run: func() error {
				_, err := RegisterGlobalAcceptAll(tok, nil)
				return err
			},
		},
		{
			name: "invalid target",
			err:  bus.ErrInvalidIdentity,
			run: func() error {
				_, err := RegisterTargeted(tok, entity.Invalid, func(heal) {})
				return err
			},
		},
		{
			name: "invalid source",
			err:  bus.ErrInvalidIdentity,
			run: func() error {
				_, err := RegisterBroadcast(tok, entity.Invalid, func(damage) {})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.True(t, errors.Is(err, tt.err), "error = %v, want %v", err, tt.err)
		})
	}
	require.Zero(t, tok.Len())
}
