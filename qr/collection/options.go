package collection

import (
	"log/slog"
)

// Kind names a collection flavor in logs and dumps.
type Kind string

// Collection kinds.
const (
	KindDeque    Kind = "deque"
	KindQueue    Kind = "queue"
	KindStack    Kind = "stack"
	KindCapped   Kind = "capped"
	KindPriority Kind = "priority"
)

// Option customizes a collection handle.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger routes decode failures to logger instead of slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
