package diag

import (
	"slices"
	"sync"
	"time"

	"dxmsg/pkg/entity"
	"dxmsg/pkg/message"
)

// Kind tells whether a log entry records a subscribe or an unsubscribe.
type Kind uint8

const (
	KindRegister Kind = iota + 1
	KindDeregister
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindDeregister:
		return "deregister"
	default:
		return "unknown"
	}
}

// Registration is one registration log entry.
type Registration struct {
	Owner       entity.ID
	MessageType string
	Kind        Kind
	Route       message.Route
	Category    message.Category
	Priority    int
	At          time.Time
}

// RegistrationLog is an append-only list of registration events.
type RegistrationLog struct {
	mu      sync.Mutex
	entries []Registration
}

// Log appends entry.
func (l *RegistrationLog) Log(entry Registration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of every entry in log order.
func (l *RegistrationLog) Entries() []Registration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Len returns the number of entries.
func (l *RegistrationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry.
func (l *RegistrationLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// ClearWhere drops the entries matching pred and returns how many were dropped.
func (l *RegistrationLog) ClearWhere(pred func(Registration) bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	before := len(l.entries)
	l.entries = slices.DeleteFunc(l.entries, pred)
	return before - len(l.entries)
}

// ForOwner returns the entries recorded for owner.
func (l *RegistrationLog) ForOwner(owner entity.ID) []Registration {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Registration
	for _, entry := range l.entries {
		if entry.Owner == owner {
			out = append(out, entry)
		}
	}
	return out
}
