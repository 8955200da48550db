package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrorHandler is called with a *HandlerError whenever the handler returns an
// error or panics. Its own failures are logged and discarded.
type ErrorHandler func(ctx context.Context, err error) error

// Option customizes a Worker.
type Option func(*options)

type options struct {
	id       string
	logger   *slog.Logger
	observer Observer
	onError  ErrorHandler
	timeout  time.Duration
}

// WithID sets the worker identity used as the event source. Defaults to a random UUID.
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

// WithLogger sets the logger for handler failures nobody else receives.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver receives every worker event.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithErrorHandler sets the handler for failed elements.
func WithErrorHandler(fn ErrorHandler) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithTimeout bounds each blocking pop. An empty pop loops back to waiting,
// so this only controls how often the loop wakes up. Zero waits indefinitely.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout >= 0 {
			o.timeout = timeout
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		observer: NoOpObserver{},
	}

	for _, opt := range opts {
		opt(&o)
	}

	if o.id == "" {
		o.id = uuid.NewString()
	}

	return o
}
