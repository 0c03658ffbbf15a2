package bus

import (
	"log/slog"
	"time"

	"dxmsg/pkg/config"
	"dxmsg/pkg/diag"
)

// Option configures a Bus.
type Option func(*busConfig)

type busConfig struct {
	name            string
	logger          *slog.Logger
	diagnostics     bool
	historyCapacity int
	metrics         *diag.Metrics
	clock           func() time.Time
}

const defaultHistoryCapacity = 256

func defaultBusConfig() busConfig {
	return busConfig{
		name:            "default",
		historyCapacity: defaultHistoryCapacity,
		clock:           time.Now,
	}
}

// WithName names the bus in logs.
func WithName(name string) Option {
	return func(c *busConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithDiagnostics enables the emission history and registration log.
func WithDiagnostics(enabled bool) Option {
	return func(c *busConfig) {
		c.diagnostics = enabled
	}
}

// WithHistoryCapacity sets the emission ring buffer capacity. 0 retains
// nothing.
func WithHistoryCapacity(capacity int) Option {
	return func(c *busConfig) {
		c.historyCapacity = max(capacity, 0)
	}
}

// WithMetrics records emissions on m.
func WithMetrics(m *diag.Metrics) Option {
	return func(c *busConfig) {
		c.metrics = m
	}
}

// WithClock replaces time.Now for diagnostics timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *busConfig) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewFromConfig creates a bus from the bus section of the runtime config.
// Explicit options are applied after the config values.
func NewFromConfig(cfg config.BusConfig, opts ...Option) *Bus {
	base := []Option{
		WithDiagnostics(cfg.Diagnostics),
		WithHistoryCapacity(cfg.HistoryCapacity),
	}
	return New(append(base, opts...)...)
}
