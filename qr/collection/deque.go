package collection

import (
	"context"
	"time"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/store"
)

// Deque is a double-ended queue. Its back is the left end of the stored list
// and its front is the right end, so PushBack followed by PopFront is FIFO.
type Deque[T any] struct {
	list[T]
}

// NewDeque returns a deque stored under key.
func NewDeque[T any](s store.Store, key string, c codec.Codec[T], opts ...Option) (*Deque[T], error) {
	h, err := newHandle(KindDeque, s, key, c, opts)
	if err != nil {
		return nil, err
	}

	return &Deque[T]{list: list[T]{handle: h}}, nil
}

// PushBack adds v at the back.
func (d *Deque[T]) PushBack(ctx context.Context, v T) error {
	return d.push(ctx, store.Left, v)
}

// PushFront adds v at the front.
func (d *Deque[T]) PushFront(ctx context.Context, v T) error {
	return d.push(ctx, store.Right, v)
}

// PopFront removes and returns the front element.
func (d *Deque[T]) PopFront(ctx context.Context) (T, bool, error) {
	return d.pop(ctx, store.Right)
}

// PopBack removes and returns the back element.
func (d *Deque[T]) PopBack(ctx context.Context) (T, bool, error) {
	return d.pop(ctx, store.Left)
}

// PopFrontWait is PopFront that waits up to timeout for an element.
// A zero timeout waits until ctx is done.
func (d *Deque[T]) PopFrontWait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	return d.popWait(ctx, store.Right, timeout)
}

// PopBackWait is PopBack that waits up to timeout for an element.
func (d *Deque[T]) PopBackWait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	return d.popWait(ctx, store.Left, timeout)
}
