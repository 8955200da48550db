package qr

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"

	"github.com/oshokin/xk6-qr/qr/collection"
)

// listCollection is the surface every list-backed collection shares.
type listCollection interface {
	Key() string
	Len(ctx context.Context) (int64, error)
	Elements(ctx context.Context) ([]any, error)
	ElementsJSON(ctx context.Context) ([]byte, error)
	Index(ctx context.Context, i int64) (any, bool, error)
	Slice(ctx context.Context, i, j int64) ([]any, error)
	Extend(ctx context.Context, values ...any) error
	Clear(ctx context.Context) error
	Dump(ctx context.Context, w io.Writer) (int, error)
	Load(ctx context.Context, r io.Reader) (int, error)
}

type (
	popFunc     func(ctx context.Context) (any, bool, error)
	popWaitFunc func(ctx context.Context, timeout time.Duration) (any, bool, error)
	pushFunc    func(ctx context.Context, v any) error
)

// jsList carries the methods of list-backed collections into JS.
type jsList struct {
	client *Client
	coll   listCollection
}

func (c *Client) list(coll listCollection) *jsList {
	return &jsList{client: c, coll: coll}
}

// Key returns the store key of the collection.
func (l *jsList) Key() string {
	return l.coll.Key()
}

// Len resolves to the number of elements.
func (l *jsList) Len() *sobek.Promise {
	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return l.coll.Len(ctx)
	}, toJSValue)
}

// Elements resolves to every element, index 0 first.
func (l *jsList) Elements() *sobek.Promise {
	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return l.coll.Elements(ctx)
	}, toJSArray)
}

// ElementsJSON resolves to the elements rendered as a JSON array string.
func (l *jsList) ElementsJSON() *sobek.Promise {
	return l.client.runAsync(func(ctx context.Context) (any, error) {
		out, err := l.coll.ElementsJSON(ctx)

		return string(out), err
	}, toJSValue)
}

// Index resolves to the element at i, or null.
func (l *jsList) Index(i sobek.Value) *sobek.Promise {
	at, err := argInt(i)
	if err != nil {
		return l.client.rejected(NewError(ValueNumberRequiredError, fmt.Sprintf("index must be a number: %v", err)))
	}

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		v, ok, err := l.coll.Index(ctx, at)

		return optional{value: v, ok: ok}, err
	}, toJSOptional)
}

// Slice resolves to the elements in [i, j). An omitted j means the end.
func (l *jsList) Slice(i, j sobek.Value) *sobek.Promise {
	start, stop, err := sliceArgs(i, j)
	if err != nil {
		return l.client.rejected(err)
	}

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return l.coll.Slice(ctx, start, stop)
	}, toJSArray)
}

// Extend pushes every element of an array in one batch.
func (l *jsList) Extend(values sobek.Value) *sobek.Promise {
	items, err := exportArray(l.client.vu.Runtime(), values)
	if err != nil {
		return l.client.rejected(err)
	}

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return len(items), l.coll.Extend(ctx, items...)
	}, toJSValue)
}

// Clear removes the collection.
func (l *jsList) Clear() *sobek.Promise {
	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return true, l.coll.Clear(ctx)
	}, toJSValue)
}

// Dump moves the collection into fileName as JSON lines and resolves to the element count.
func (l *jsList) Dump(fileName sobek.Value) *sobek.Promise {
	path := fileName.String()

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return dumpToFile(ctx, path, l.coll.Dump)
	}, toJSValue)
}

// Load pushes the elements of a dump file and resolves to the element count.
func (l *jsList) Load(fileName sobek.Value) *sobek.Promise {
	path := fileName.String()

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return loadFromFile(ctx, path, l.coll.Load)
	}, toJSValue)
}

func (l *jsList) push(fn pushFunc, value sobek.Value) *sobek.Promise {
	exported := value.Export()

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		return nil, fn(ctx, exported)
	}, func(_ *sobek.Runtime, _ any) sobek.Value {
		// Resolve with the exact same JS value the user passed in.
		return value
	})
}

func (l *jsList) pop(fn popFunc) *sobek.Promise {
	return l.client.runAsync(func(ctx context.Context) (any, error) {
		v, ok, err := fn(ctx)

		return optional{value: v, ok: ok}, err
	}, toJSOptional)
}

func (l *jsList) popWait(fn popWaitFunc, timeout sobek.Value) *sobek.Promise {
	var wait time.Duration

	if !common.IsNullish(timeout) {
		parsed, err := parseDurationValue(timeout.Export())
		if err != nil {
			return l.client.rejected(NewError(ValueNumberRequiredError, fmt.Sprintf("timeout: %v", err)))
		}

		wait = parsed
	}

	return l.client.runAsync(func(ctx context.Context) (any, error) {
		v, ok, err := fn(ctx, wait)

		return optional{value: v, ok: ok}, err
	}, toJSOptional)
}

type jsDeque struct {
	*jsList

	deque *collection.Deque[any]
}

// PushBack adds value at the back.
func (d *jsDeque) PushBack(value sobek.Value) *sobek.Promise {
	return d.push(d.deque.PushBack, value)
}

// PushFront adds value at the front.
func (d *jsDeque) PushFront(value sobek.Value) *sobek.Promise {
	return d.push(d.deque.PushFront, value)
}

// PopFront resolves to the front element, or null.
func (d *jsDeque) PopFront() *sobek.Promise {
	return d.pop(d.deque.PopFront)
}

// PopBack resolves to the back element, or null.
func (d *jsDeque) PopBack() *sobek.Promise {
	return d.pop(d.deque.PopBack)
}

// PopFrontWait waits up to timeout (ms or duration string) for a front element.
func (d *jsDeque) PopFrontWait(timeout sobek.Value) *sobek.Promise {
	return d.popWait(d.deque.PopFrontWait, timeout)
}

// PopBackWait waits up to timeout for a back element.
func (d *jsDeque) PopBackWait(timeout sobek.Value) *sobek.Promise {
	return d.popWait(d.deque.PopBackWait, timeout)
}

type jsQueue struct {
	*jsList

	queue *collection.Queue[any]
}

// Push enqueues value.
func (q *jsQueue) Push(value sobek.Value) *sobek.Promise {
	return q.push(q.queue.Push, value)
}

// Pop resolves to the oldest element, or null.
func (q *jsQueue) Pop() *sobek.Promise {
	return q.pop(q.queue.Pop)
}

// PopWait waits up to timeout for an element; no timeout waits until the test ends.
func (q *jsQueue) PopWait(timeout sobek.Value) *sobek.Promise {
	return q.popWait(q.queue.PopWait, timeout)
}

type jsStack struct {
	*jsList

	stack *collection.Stack[any]
}

// Push puts value on top.
func (s *jsStack) Push(value sobek.Value) *sobek.Promise {
	return s.push(s.stack.Push, value)
}

// Pop resolves to the newest element, or null.
func (s *jsStack) Pop() *sobek.Promise {
	return s.pop(s.stack.Pop)
}

// PopWait waits up to timeout for an element.
func (s *jsStack) PopWait(timeout sobek.Value) *sobek.Promise {
	return s.popWait(s.stack.PopWait, timeout)
}

type jsCapped struct {
	*jsList

	capped *collection.Capped[any]
}

// Size returns the capacity.
func (c *jsCapped) Size() int64 {
	return c.capped.Size()
}

// Push adds value, evicting the oldest element on overflow.
func (c *jsCapped) Push(value sobek.Value) *sobek.Promise {
	return c.push(c.capped.Push, value)
}

// Pop resolves to the oldest surviving element, or null.
func (c *jsCapped) Pop() *sobek.Promise {
	return c.pop(c.capped.Pop)
}

// PopWait waits up to timeout for an element.
func (c *jsCapped) PopWait(timeout sobek.Value) *sobek.Promise {
	return c.popWait(c.capped.PopWait, timeout)
}

func sliceArgs(i, j sobek.Value) (int64, int64, error) {
	start, err := argInt(i)
	if common.IsNullish(i) {
		start, err = 0, nil
	}

	if err != nil {
		return 0, 0, NewError(ValueNumberRequiredError, fmt.Sprintf("slice start must be a number: %v", err))
	}

	if common.IsNullish(j) {
		return start, math.MaxInt64, nil
	}

	stop, err := argInt(j)
	if err != nil {
		return 0, 0, NewError(ValueNumberRequiredError, fmt.Sprintf("slice end must be a number: %v", err))
	}

	return start, stop, nil
}

// exportArray converts a JS array into Go values on the VU thread.
func exportArray(rt *sobek.Runtime, values sobek.Value) ([]any, error) {
	if common.IsNullish(values) {
		return nil, nil
	}

	var items []any
	if err := rt.ExportTo(values, &items); err != nil {
		return nil, fmt.Errorf("%w: expected an array: %w", ErrUnsupportedValue, err)
	}

	return items, nil
}

func dumpToFile(ctx context.Context, path string, dump func(context.Context, io.Writer) (int, error)) (int, error) {
	f, err := os.Create(path) //nolint:gosec // the script chooses the dump location.
	if err != nil {
		return 0, fmt.Errorf("%w: %w", collection.ErrDumpFailed, err)
	}

	n, err := dump(ctx, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: %w", collection.ErrDumpFailed, closeErr)
	}

	return n, err
}

func loadFromFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path) //nolint:gosec // the script chooses the dump location.
	if err != nil {
		return 0, fmt.Errorf("%w: %w", collection.ErrLoadFailed, err)
	}
	defer f.Close()

	return load(ctx, f)
}
