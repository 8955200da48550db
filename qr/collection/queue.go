package collection

import (
	"context"
	"time"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/store"
)

// Queue is a FIFO collection: pushes go left, pops come from the right.
type Queue[T any] struct {
	list[T]
}

// NewQueue returns a queue stored under key.
func NewQueue[T any](s store.Store, key string, c codec.Codec[T], opts ...Option) (*Queue[T], error) {
	h, err := newHandle(KindQueue, s, key, c, opts)
	if err != nil {
		return nil, err
	}

	return &Queue[T]{list: list[T]{handle: h}}, nil
}

// Push enqueues v.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	return q.push(ctx, store.Left, v)
}

// Pop dequeues the oldest element.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool, error) {
	return q.pop(ctx, store.Right)
}

// PopWait is Pop that waits up to timeout for an element.
// A zero timeout waits until ctx is done or the store is closed.
func (q *Queue[T]) PopWait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	return q.popWait(ctx, store.Right, timeout)
}

// Stack is a LIFO collection: pushes and pops both use the left end.
type Stack[T any] struct {
	list[T]
}

// NewStack returns a stack stored under key.
func NewStack[T any](s store.Store, key string, c codec.Codec[T], opts ...Option) (*Stack[T], error) {
	h, err := newHandle(KindStack, s, key, c, opts)
	if err != nil {
		return nil, err
	}

	return &Stack[T]{list: list[T]{handle: h}}, nil
}

// Push puts v on top.
func (s *Stack[T]) Push(ctx context.Context, v T) error {
	return s.push(ctx, store.Left, v)
}

// Pop removes the most recently pushed element.
func (s *Stack[T]) Pop(ctx context.Context) (T, bool, error) {
	return s.pop(ctx, store.Left)
}

// PopWait is Pop that waits up to timeout for an element.
func (s *Stack[T]) PopWait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	return s.popWait(ctx, store.Left, timeout)
}
