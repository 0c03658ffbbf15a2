package bus

import (
	"slices"
	"sync"
)

var defaults struct {
	mu        sync.Mutex
	base      *Bus
	overrides []*Bus
}

// Default returns the process-wide bus: the innermost active override, or
// a lazily constructed shared instance.
func Default() *Bus {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()

	if n := len(defaults.overrides); n > 0 {
		return defaults.overrides[n-1]
	}
	if defaults.base == nil {
		defaults.base = New()
	}
	return defaults.base
}

// Override makes b the default bus until restore is called. Overrides nest;
// restoring one removes only that override, so out-of-order restores still
// leave the remaining ones intact. restore is idempotent.
//
//	restore := bus.Override(bus.New())
//	defer restore()
func Override(b *Bus) (restore func()) {
	if b == nil {
		panic("bus: Override called with nil bus")
	}

	defaults.mu.Lock()
	defaults.overrides = append(defaults.overrides, b)
	defaults.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			defaults.mu.Lock()
			defer defaults.mu.Unlock()

			for i := len(defaults.overrides) - 1; i >= 0; i-- {
				if defaults.overrides[i] == b {
					defaults.overrides = slices.Delete(defaults.overrides, i, i+1)
					return
				}
			}
		})
	}
}

// ResetDefault drops the shared instance and every override. The next
// Default call constructs a fresh bus.
func ResetDefault() {
	defaults.mu.Lock()
	defer defaults.mu.Unlock()

	defaults.base = nil
	defaults.overrides = nil
}
