package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

var (
	// ErrUnknownKind is returned for a collection kind the gateway cannot serve.
	ErrUnknownKind = errors.New("unknown collection kind")
	// ErrMissingKey is returned for a declared collection without a key.
	ErrMissingKey = errors.New("collection key is required")
	// ErrWaitUnsupported is returned when a blocking pop targets a priority queue.
	ErrWaitUnsupported = errors.New("blocking pop is not supported by this collection")
)

// Collection declares one collection served under /q/:key.
type Collection struct {
	Key  string          `yaml:"key"`
	Kind collection.Kind `yaml:"kind"`
	// Size is the capacity of a capped collection.
	Size int64           `yaml:"size"`
}

// Validate checks the declaration without touching a store.
func (c Collection) Validate() error {
	if c.Key == "" {
		return ErrMissingKey
	}

	switch c.Kind {
	case collection.KindDeque, collection.KindQueue, collection.KindStack, collection.KindPriority:
		return nil
	case collection.KindCapped:
		if c.Size < 1 {
			return fmt.Errorf("%w: %d", collection.ErrInvalidSize, c.Size)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}

// element is one entry of a GET /q/:key response.
type element struct {
	Value string   `json:"value"`
	Score *float64 `json:"score,omitempty"`
}

// endpoint is what the HTTP handlers need from a collection.
type endpoint interface {
	push(ctx context.Context, body []byte, score float64) error
	pop(ctx context.Context, wait time.Duration) ([]byte, bool, error)
	peek(ctx context.Context) ([]byte, bool, error)
	elements(ctx context.Context) ([]element, error)
	length(ctx context.Context) (int64, error)
	clear(ctx context.Context) error
	scored() bool
}

// lister is the read surface shared by the list-backed collections.
type lister interface {
	Index(ctx context.Context, i int64) ([]byte, bool, error)
	Elements(ctx context.Context) ([][]byte, error)
	Len(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
}

type listEndpoint struct {
	lister

	pushFn    func(ctx context.Context, v []byte) error
	popFn     func(ctx context.Context) ([]byte, bool, error)
	popWaitFn func(ctx context.Context, timeout time.Duration) ([]byte, bool, error)
	// peekAt is the index of the element the next pop returns.
	peekAt    int64
}

func (e *listEndpoint) push(ctx context.Context, body []byte, _ float64) error {
	return e.pushFn(ctx, body)
}

func (e *listEndpoint) pop(ctx context.Context, wait time.Duration) ([]byte, bool, error) {
	if wait > 0 {
		return e.popWaitFn(ctx, wait)
	}

	return e.popFn(ctx)
}

func (e *listEndpoint) peek(ctx context.Context) ([]byte, bool, error) {
	return e.Index(ctx, e.peekAt)
}

func (e *listEndpoint) elements(ctx context.Context) ([]element, error) {
	values, err := e.Elements(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]element, len(values))
	for i, v := range values {
		out[i] = element{Value: string(v)}
	}

	return out, nil
}

func (e *listEndpoint) length(ctx context.Context) (int64, error) {
	return e.Len(ctx)
}

func (e *listEndpoint) clear(ctx context.Context) error {
	return e.Clear(ctx)
}

func (*listEndpoint) scored() bool {
	return false
}

type priorityEndpoint struct {
	queue *collection.Priority[[]byte]
}

func (e *priorityEndpoint) push(ctx context.Context, body []byte, score float64) error {
	return e.queue.Push(ctx, body, score)
}

func (e *priorityEndpoint) pop(ctx context.Context, wait time.Duration) ([]byte, bool, error) {
	if wait > 0 {
		return nil, false, ErrWaitUnsupported
	}

	return e.queue.Pop(ctx)
}

func (e *priorityEndpoint) peek(ctx context.Context) ([]byte, bool, error) {
	return e.queue.Peek(ctx)
}

func (e *priorityEndpoint) elements(ctx context.Context) ([]element, error) {
	items, err := e.queue.ElementsWithScores(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]element, len(items))
	for i, item := range items {
		score := item.Score
		out[i] = element{Value: string(item.Value), Score: &score}
	}

	return out, nil
}

func (e *priorityEndpoint) length(ctx context.Context) (int64, error) {
	return e.queue.Len(ctx)
}

func (e *priorityEndpoint) clear(ctx context.Context) error {
	return e.queue.Clear(ctx)
}

func (*priorityEndpoint) scored() bool {
	return true
}

// newEndpoint builds the collection c declares over s.
func newEndpoint(s store.Store, c Collection, opts []collection.Option) (endpoint, error) {
	var raw codec.Bytes

	switch c.Kind {
	case collection.KindDeque:
		d, err := collection.NewDeque[[]byte](s, c.Key, raw, opts...)
		if err != nil {
			return nil, err
		}

		return &listEndpoint{lister: d, pushFn: d.PushBack, popFn: d.PopFront, popWaitFn: d.PopFrontWait, peekAt: -1}, nil
	case collection.KindQueue:
		q, err := collection.NewQueue[[]byte](s, c.Key, raw, opts...)
		if err != nil {
			return nil, err
		}

		return &listEndpoint{lister: q, pushFn: q.Push, popFn: q.Pop, popWaitFn: q.PopWait, peekAt: -1}, nil
	case collection.KindStack:
		st, err := collection.NewStack[[]byte](s, c.Key, raw, opts...)
		if err != nil {
			return nil, err
		}

		return &listEndpoint{lister: st, pushFn: st.Push, popFn: st.Pop, popWaitFn: st.PopWait, peekAt: 0}, nil
	case collection.KindCapped:
		capped, err := collection.NewCapped[[]byte](s, c.Key, c.Size, raw, opts...)
		if err != nil {
			return nil, err
		}

		return &listEndpoint{
			lister: capped, pushFn: capped.Push, popFn: capped.Pop, popWaitFn: capped.PopWait, peekAt: -1,
		}, nil
	case collection.KindPriority:
		p, err := collection.NewPriority[[]byte](s, c.Key, raw, opts...)
		if err != nil {
			return nil, err
		}

		return &priorityEndpoint{queue: p}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
}
