package diag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"dxmsg/pkg/message"
)

func TestRegistrationLogFilters(t *testing.T) {
	var log RegistrationLog
	log.Log(Registration{Owner: 1, MessageType: "Ping", Kind: KindRegister, Route: message.RouteUntargeted})
	log.Log(Registration{Owner: 2, MessageType: "Heal", Kind: KindRegister, Route: message.RouteTargeted})
	log.Log(Registration{Owner: 1, MessageType: "Ping", Kind: KindDeregister, Route: message.RouteUntargeted})

	if got := len(log.ForOwner(1)); got != 2 {
		t.Fatalf("len(ForOwner(1)) = %d, want 2", got)
	}
	if got := len(log.ForOwner(3)); got != 0 {
		t.Fatalf("len(ForOwner(3)) = %d, want 0", got)
	}

	dropped := log.ClearWhere(func(r Registration) bool { return r.Kind == KindDeregister })
	if dropped != 1 {
		t.Fatalf("ClearWhere dropped %d, want 1", dropped)
	}
	if log.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", log.Len())
	}

	log.Clear()
	if log.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", log.Len())
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	var log RegistrationLog
	log.Log(Registration{Owner: 1})

	entries := log.Entries()
	entries[0].Owner = 99

	if got := log.Entries()[0].Owner; got != 1 {
		t.Fatalf("owner = %v, want 1", got)
	}
}

type loud struct{}

func (loud) String() string { panic("boom") }

func TestSummarizeSurvivesPanickingStringer(t *testing.T) {
	got := Summarize(loud{})
	if got == "" {
		t.Fatal("expected a summary for a panicking Stringer")
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	if got := Summarize(string(long)); len(got) != 120 {
		t.Fatalf("len(Summarize) = %d, want 120", len(got))
	}
}

func TestSummarizeCutsOnRuneBoundary(t *testing.T) {
	// "x" shifts the three-byte runes so byte 117 lands mid-rune.
	payload := "x" + strings.Repeat("€", 60)

	got := Summarize(payload)
	if !utf8.ValidString(got) {
		t.Fatalf("Summarize produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("Summarize = %q, want ... suffix", got)
	}
	if len(got) > 120 {
		t.Fatalf("len(Summarize) = %d, want <= 120", len(got))
	}
}
