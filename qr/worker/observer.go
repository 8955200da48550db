package worker

import (
	"context"
	"log/slog"
	"time"
)

// EventType names a worker lifecycle event.
type EventType string

// Events emitted by Run.
const (
	EventStarted            EventType = "worker.started"
	EventReceived           EventType = "worker.received"
	EventHandlerFailed      EventType = "worker.handler_failed"
	EventErrorHandlerFailed EventType = "worker.error_handler_failed"
	EventStopped            EventType = "worker.stopped"
)

// Event is one observation. Source is the worker ID; Data holds event-specific
// attributes such as "error" or "processed".
type Event struct {
	Type      EventType
	Level     slog.Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives worker events. OnEvent runs on the worker goroutine and
// must not block.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// SlogObserver writes events to a slog.Logger. The event type becomes the
// message and Data keys become top-level attributes.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates a SlogObserver that emits to logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, len(event.Data)+1)
	attrs = append(attrs, slog.String("worker", event.Source))

	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}

	o.logger.LogAttrs(ctx, event.Level, string(event.Type), attrs...)
}

// MultiObserver fans events out to several observers.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver forwards to every non-nil observer.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	filtered := make([]Observer, 0, len(observers))

	for _, obs := range observers {
		if obs != nil {
			filtered = append(filtered, obs)
		}
	}

	return &MultiObserver{observers: filtered}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
