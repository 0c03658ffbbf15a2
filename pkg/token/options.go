package token

import "log/slog"

// Option configures a Token.
type Option func(*Token)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(t *Token) {
		if log != nil {
			t.log = log
		}
	}
}

// RegisterOption configures one registration.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	priority int
}

// WithPriority orders the registration among handlers of the same message
// type. Lower runs first. Defaults to 0.
func WithPriority(priority int) RegisterOption {
	return func(o *registerOptions) {
		o.priority = priority
	}
}

func applyRegisterOptions(opts []RegisterOption) registerOptions {
	var o registerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
