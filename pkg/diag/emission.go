package diag

import (
	"fmt"
	"time"
	"unicode/utf8"

	"dxmsg/pkg/entity"
	"dxmsg/pkg/message"
)

// Emission is one entry of the emission history.
type Emission struct {
	Type     string
	Category message.Category
	Identity entity.ID
	At       time.Time
	Summary  string
	Vetoed   bool
}

func (e Emission) String() string {
	var b []byte
	b = fmt.Appendf(b, "%s %s %s", e.At.Format("15:04:05.000"), e.Category, e.Type)
	if e.Identity.Valid() {
		b = fmt.Appendf(b, " @%d", int64(e.Identity))
	}
	if e.Vetoed {
		b = append(b, " (vetoed)"...)
	}
	if e.Summary != "" {
		b = append(b, ' ')
		b = append(b, e.Summary...)
	}
	return string(b)
}

// Summarize renders a payload for the history. fmt already converts a
// panicking String method into a %!v(PANIC=...) marker, so this never panics
// on behalf of the payload.
func Summarize(payload any) string {
	const maxLen = 120

	s := fmt.Sprintf("%+v", payload)
	if len(s) <= maxLen {
		return s
	}

	cut := maxLen - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
