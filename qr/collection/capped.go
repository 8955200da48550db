package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/store"
)

// Capped is a bounded FIFO collection. A push that overflows the capacity
// evicts the oldest element, so the collection always holds the most recent
// Size() elements and pops return the oldest survivor first.
//
// Each push is one batch of push-left followed by a trim to the capacity, so
// concurrent pushers can never observe or leave more than Size() elements.
type Capped[T any] struct {
	list[T]
}

// NewCapped returns a capped collection of the given size stored under key.
func NewCapped[T any](s store.Store, key string, size int64, c codec.Codec[T], opts ...Option) (*Capped[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	h, err := newHandle(KindCapped, s, key, c, opts)
	if err != nil {
		return nil, err
	}

	return &Capped[T]{list: list[T]{handle: h, capacity: size}}, nil
}

// Size returns the capacity.
func (c *Capped[T]) Size() int64 {
	return c.capacity
}

// Push adds v, evicting the oldest element on overflow.
func (c *Capped[T]) Push(ctx context.Context, v T) error {
	return c.push(ctx, store.Left, v)
}

// Pop removes the oldest surviving element.
func (c *Capped[T]) Pop(ctx context.Context) (T, bool, error) {
	return c.pop(ctx, store.Right)
}

// PopWait is Pop that waits up to timeout for an element.
func (c *Capped[T]) PopWait(ctx context.Context, timeout time.Duration) (T, bool, error) {
	return c.popWait(ctx, store.Right, timeout)
}
