package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oshokin/xk6-qr/qr/store"
)

// list holds the reads and writes shared by the list-backed collections.
// capacity is zero for unbounded lists.
type list[T any] struct {
	handle[T]

	capacity int64
}

// withCap appends the trim that enforces capacity, if any.
func (l *list[T]) withCap(b *store.Batch) *store.Batch {
	if l.capacity > 0 {
		b.Trim(l.key, 0, l.capacity-1)
	}

	return b
}

func (l *list[T]) push(ctx context.Context, side store.Side, v T) error {
	raw, err := l.encode(v)
	if err != nil {
		return err
	}

	b := store.NewBatch()
	if side == store.Right {
		b.PushRight(l.key, raw)
	} else {
		b.PushLeft(l.key, raw)
	}

	_, err = l.exec(ctx, l.withCap(b))

	return err
}

func (l *list[T]) pop(ctx context.Context, side store.Side) (T, bool, error) {
	b := store.NewBatch()
	if side == store.Right {
		b.PopRight(l.key)
	} else {
		b.PopLeft(l.key)
	}

	replies, err := l.exec(ctx, b)
	if err != nil {
		var zero T

		return zero, false, err
	}

	v, ok := l.decodeReply(ctx, replies[0])

	return v, ok, nil
}

func (l *list[T]) popWait(ctx context.Context, side store.Side, timeout time.Duration) (T, bool, error) {
	raw, found, err := l.store.BlockingPop(ctx, l.key, side, timeout)
	if err != nil || !found {
		var zero T

		return zero, false, err
	}

	v, ok := l.decode(ctx, raw)

	return v, ok, nil
}

// Extend pushes every value to the left end in one batch, as repeated pushes
// would. Capped collections trim once at the end.
func (l *list[T]) Extend(ctx context.Context, values ...T) error {
	if len(values) == 0 {
		return nil
	}

	raws, err := l.encodeAll(values)
	if err != nil {
		return err
	}

	_, err = l.exec(ctx, l.withCap(store.NewBatch().PushLeft(l.key, raws...)))

	return err
}

// Elements returns every element in store order, index 0 first.
func (l *list[T]) Elements(ctx context.Context) ([]T, error) {
	return l.rangeOf(ctx, 0, -1)
}

// ElementsJSON renders Elements as a JSON array.
func (l *list[T]) ElementsJSON(ctx context.Context) ([]byte, error) {
	elements, err := l.Elements(ctx)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(elements)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	return out, nil
}

// Len returns the number of stored elements.
func (l *list[T]) Len(ctx context.Context) (int64, error) {
	replies, err := l.exec(ctx, store.NewBatch().Length(l.key))
	if err != nil {
		return 0, err
	}

	return replies[0].Count, nil
}

// Index returns the element at position i; negative positions count from the end.
func (l *list[T]) Index(ctx context.Context, i int64) (T, bool, error) {
	replies, err := l.exec(ctx, store.NewBatch().Index(l.key, i))
	if err != nil {
		var zero T

		return zero, false, err
	}

	v, ok := l.decodeReply(ctx, replies[0])

	return v, ok, nil
}

// Slice returns the elements in [i, j). Negative bounds count from the end
// and out-of-range bounds are clamped.
func (l *list[T]) Slice(ctx context.Context, i, j int64) ([]T, error) {
	stop, ok := sliceStop(j)
	if !ok {
		return []T{}, nil
	}

	return l.rangeOf(ctx, i, stop)
}

func (l *list[T]) rangeOf(ctx context.Context, start, stop int64) ([]T, error) {
	replies, err := l.exec(ctx, store.NewBatch().Range(l.key, start, stop))
	if err != nil {
		return nil, err
	}

	return l.decodeAll(ctx, replies[0].Values), nil
}
