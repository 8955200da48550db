// Package worker runs a blocking consume loop over a collection.
//
// A Worker waits on a blocking pop, hands each element to a handler and keeps
// going whatever the handler does: handler errors and panics go to the error
// handler, or are logged when there is none, and failures of the error handler
// are logged and dropped. The loop
// ends when its context is done or the store is closed, both of which are a
// clean stop, or when the pop fails for any other reason, which Run returns.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oshokin/xk6-qr/qr/store"
)

// Source is anything with a blocking pop: Queue, Stack and Capped all qualify.
type Source[T any] interface {
	PopWait(ctx context.Context, timeout time.Duration) (T, bool, error)
}

// Handler processes one element.
type Handler[T any] func(ctx context.Context, v T) error

// Stats are cumulative counters of a worker.
type Stats struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Worker consumes a Source with a Handler.
type Worker[T any] struct {
	source  Source[T]
	handler Handler[T]
	opts    options

	running   atomic.Bool
	received  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// New builds a worker over source.
func New[T any](source Source[T], handler Handler[T], opts ...Option) (*Worker[T], error) {
	if source == nil {
		return nil, ErrNilSource
	}

	if handler == nil {
		return nil, ErrNilHandler
	}

	return &Worker[T]{
		source:  source,
		handler: handler,
		opts:    buildOptions(opts),
	}, nil
}

// ID returns the worker identity.
func (w *Worker[T]) ID() string {
	return w.opts.id
}

// Stats returns a snapshot of the counters.
func (w *Worker[T]) Stats() Stats {
	return Stats{
		Received:  w.received.Load(),
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
	}
}

// Run consumes until ctx is done or the store is closed, returning nil, or
// until the pop fails otherwise, returning that error.
func (w *Worker[T]) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)

	w.emit(ctx, EventStarted, slog.LevelInfo, map[string]any{"timeout": w.opts.timeout.String()})

	for {
		if ctx.Err() != nil {
			w.stopped(ctx, nil)

			return nil
		}

		v, ok, err := w.source.PopWait(ctx, w.opts.timeout)

		switch {
		case err != nil && stopsCleanly(ctx, err):
			w.stopped(ctx, nil)

			return nil
		case err != nil:
			w.stopped(ctx, err)

			return err
		case !ok:
			if ctx.Err() != nil {
				w.stopped(ctx, nil)

				return nil
			}

			continue
		}

		w.dispatch(ctx, v)
	}
}

func stopsCleanly(ctx context.Context, err error) bool {
	if errors.Is(err, store.ErrClosed) {
		return true
	}

	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func (w *Worker[T]) dispatch(ctx context.Context, v T) {
	w.received.Add(1)
	w.emit(ctx, EventReceived, slog.LevelDebug, nil)

	err := w.handle(ctx, v)
	if err == nil {
		w.processed.Add(1)

		return
	}

	w.failed.Add(1)
	w.emit(ctx, EventHandlerFailed, slog.LevelWarn, map[string]any{"error": err.Error()})

	if w.opts.onError == nil {
		w.opts.logger.WarnContext(ctx, "handler failed",
			slog.String("worker", w.opts.id),
			slog.Any("error", err))

		return
	}

	if herr := w.handleError(ctx, &HandlerError{Value: v, Err: err}); herr != nil {
		w.emit(ctx, EventErrorHandlerFailed, slog.LevelError, map[string]any{"error": herr.Error()})
		w.opts.logger.ErrorContext(ctx, "error handler failed",
			slog.String("worker", w.opts.id),
			slog.Any("error", herr))
	}
}

func (w *Worker[T]) handle(ctx context.Context, v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	return w.handler(ctx, v)
}

func (w *Worker[T]) handleError(ctx context.Context, failure error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	return w.opts.onError(ctx, failure)
}

func (w *Worker[T]) stopped(ctx context.Context, err error) {
	data := map[string]any{
		"received":  w.received.Load(),
		"processed": w.processed.Load(),
		"failed":    w.failed.Load(),
	}

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		data["error"] = err.Error()
	}

	// ctx may already be done here; observers only use it for values.
	w.emit(context.WithoutCancel(ctx), EventStopped, level, data)
}

func (w *Worker[T]) emit(ctx context.Context, typ EventType, level slog.Level, data map[string]any) {
	w.opts.observer.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    w.opts.id,
		Data:      data,
	})
}
