package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}

	return out
}

// scriptedSource replays a fixed list of pop results, then ends with final.
type scriptedSource struct {
	mu      sync.Mutex
	results []popResult
	final   error
}

type popResult struct {
	value string
	ok    bool
	err   error
}

func (s *scriptedSource) PopWait(context.Context, time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.results) == 0 {
		return "", false, s.final
	}

	r := s.results[0]
	s.results = s.results[1:]

	return r.value, r.ok, r.err
}

func newQueue(t *testing.T) (*collection.Queue[string], store.Store) {
	t.Helper()

	s := store.NewMemoryStore(nil)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })

	q, err := collection.NewQueue(s, "jobs", codec.String{})
	require.NoError(t, err)

	return q, s
}

func TestNew_RequiresSourceAndHandler(t *testing.T) {
	t.Parallel()

	_, err := New[string](nil, func(context.Context, string) error { return nil })
	require.ErrorIs(t, err, ErrNilSource)

	_, err = New[string](&scriptedSource{}, nil)
	require.ErrorIs(t, err, ErrNilHandler)
}

func TestRun_ProcessesInOrderAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, q.Push(ctx, v))
	}

	var (
		mu  sync.Mutex
		got []string
	)

	w, err := New(q, func(_ context.Context, v string) error {
		mu.Lock()
		defer mu.Unlock()

		got = append(got, v)
		if len(got) == 3 {
			cancel()
		}

		return nil
	}, WithID("w-1"))
	require.NoError(t, err)
	assert.Equal(t, "w-1", w.ID())

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, Stats{Received: 3, Processed: 3}, w.Stats())
}

func TestRun_StopsCleanlyWhenStoreCloses(t *testing.T) {
	t.Parallel()

	q, s := newQueue(t)

	w, err := New(q, func(context.Context, string) error { return nil })
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() { done <- w.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after Close")
	}
}

func TestRun_ReturnsUnexpectedPopErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	events := &recorder{}

	w, err := New[string](&scriptedSource{final: boom}, func(context.Context, string) error { return nil },
		WithObserver(events))
	require.NoError(t, err)

	require.ErrorIs(t, w.Run(context.Background()), boom)
	assert.Equal(t, []EventType{EventStarted, EventStopped}, events.types())
}

func TestRun_EmptyPopsLoopBack(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{
		results: []popResult{{}, {}, {value: "x", ok: true}},
		final:   store.ErrClosed,
	}

	var calls int

	w, err := New[string](src, func(_ context.Context, v string) error {
		calls++

		assert.Equal(t, "x", v)

		return nil
	}, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestRun_HandlerFailuresReachErrorHandler(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{
		results: []popResult{
			{value: "err", ok: true},
			{value: "panic", ok: true},
			{value: "fine", ok: true},
		},
		final: store.ErrClosed,
	}

	handlerErr := errors.New("rejected")

	var failures []*HandlerError

	w, err := New[string](src,
		func(_ context.Context, v string) error {
			switch v {
			case "err":
				return handlerErr
			case "panic":
				panic("exploded")
			}

			return nil
		},
		WithErrorHandler(func(_ context.Context, err error) error {
			var herr *HandlerError
			require.ErrorAs(t, err, &herr)
			failures = append(failures, herr)

			return nil
		}))
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	require.Len(t, failures, 2)
	assert.Equal(t, "err", failures[0].Value)
	require.ErrorIs(t, failures[0], handlerErr)
	assert.Equal(t, "panic", failures[1].Value)
	require.ErrorIs(t, failures[1], ErrHandlerPanicked)

	assert.Equal(t, Stats{Received: 3, Processed: 1, Failed: 2}, w.Stats())
}

func TestRun_ErrorHandlerFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{
		results: []popResult{{value: "a", ok: true}, {value: "b", ok: true}},
		final:   store.ErrClosed,
	}

	var logs bytes.Buffer

	events := &recorder{}

	w, err := New[string](src,
		func(context.Context, string) error { return errors.New("nope") },
		WithErrorHandler(func(_ context.Context, err error) error {
			var herr *HandlerError
			if errors.As(err, &herr) && herr.Value == "a" {
				return errors.New("dead letter unavailable")
			}

			panic("error handler exploded")
		}),
		WithObserver(events),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, []EventType{
		EventStarted,
		EventReceived, EventHandlerFailed, EventErrorHandlerFailed,
		EventReceived, EventHandlerFailed, EventErrorHandlerFailed,
		EventStopped,
	}, events.types())
	assert.Contains(t, logs.String(), "dead letter unavailable")
	assert.Contains(t, logs.String(), "error handler exploded")
}

func TestRun_HandlerFailuresAreLoggedWithoutErrorHandler(t *testing.T) {
	t.Parallel()

	src := &scriptedSource{
		results: []popResult{{value: "a", ok: true}, {value: "b", ok: true}},
		final:   store.ErrClosed,
	}

	var logs bytes.Buffer

	w, err := New[string](src,
		func(_ context.Context, v string) error {
			if v == "a" {
				return errors.New("bad payload")
			}

			panic("handler exploded")
		},
		WithID("w-1"),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, Stats{Received: 2, Failed: 2}, w.Stats())

	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "worker=w-1")
	assert.Contains(t, out, "bad payload")
	assert.Contains(t, out, "handler exploded")
}

func TestRun_RejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	q, _ := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	w, err := New(q, func(context.Context, string) error { return nil }, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, w.running.Load, time.Second, time.Millisecond)
	require.ErrorIs(t, w.Run(ctx), ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
}

func TestSlogObserver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	obs := NewSlogObserver(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	multi := NewMultiObserver(nil, obs, NoOpObserver{})

	multi.OnEvent(context.Background(), Event{
		Type:   EventStopped,
		Level:  slog.LevelInfo,
		Source: "w-9",
		Data:   map[string]any{"processed": int64(4)},
	})

	out := buf.String()
	assert.Contains(t, out, "msg=worker.stopped")
	assert.Contains(t, out, "worker=w-9")
	assert.Contains(t, out, "processed=4")
}
