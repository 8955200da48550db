package qr

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"
	"go.k6.io/k6/js/promises"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

// Client is the object openQr() returns. It builds collection handles bound
// to one shared store. Each collection method:
//
//   - Converts its JS arguments on the VU thread.
//   - Executes the blocking store operation in a separate goroutine.
//   - Resolves/rejects a Sobek Promise back on the VU event loop.
//
// Handles cache nothing, so any number of VUs can address the same key.
type Client struct {
	vu    modules.VU
	rm    *RootModule
	cfg   store.Config
	store store.Store
	codec codec.Codec[any]

	closed atomic.Bool
}

func newClient(vu modules.VU, rm *RootModule, cfg store.Config, s store.Store, c codec.Codec[any]) *Client {
	return &Client{
		vu:    vu,
		rm:    rm,
		cfg:   cfg,
		store: s,
		codec: c,
	}
}

// Deque returns a double-ended queue stored under key.
func (c *Client) Deque(key sobek.Value) *sobek.Object {
	d, err := collection.NewDeque(c.store, key.String(), c.codec, c.collectionOptions()...)
	if err != nil {
		c.throw(err)
	}

	return c.toObject(&jsDeque{jsList: c.list(d), deque: d})
}

// Queue returns a FIFO queue stored under key.
func (c *Client) Queue(key sobek.Value) *sobek.Object {
	q, err := collection.NewQueue(c.store, key.String(), c.codec, c.collectionOptions()...)
	if err != nil {
		c.throw(err)
	}

	return c.toObject(&jsQueue{jsList: c.list(q), queue: q})
}

// Stack returns a LIFO stack stored under key.
func (c *Client) Stack(key sobek.Value) *sobek.Object {
	s, err := collection.NewStack(c.store, key.String(), c.codec, c.collectionOptions()...)
	if err != nil {
		c.throw(err)
	}

	return c.toObject(&jsStack{jsList: c.list(s), stack: s})
}

// CappedCollection returns a collection holding at most size elements.
func (c *Client) CappedCollection(key, size sobek.Value) *sobek.Object {
	n, err := argInt(size)
	if err != nil {
		c.throw(NewError(ValueNumberRequiredError, fmt.Sprintf("size must be a number: %v", err)))
	}

	capped, err := collection.NewCapped(c.store, key.String(), n, c.codec, c.collectionOptions()...)
	if err != nil {
		c.throw(err)
	}

	return c.toObject(&jsCapped{jsList: c.list(capped), capped: capped})
}

// PriorityQueue returns a priority queue stored under key.
func (c *Client) PriorityQueue(key sobek.Value) *sobek.Object {
	p, err := collection.NewPriority(c.store, key.String(), c.codec, c.collectionOptions()...)
	if err != nil {
		c.throw(err)
	}

	return c.toObject(&jsPriority{client: c, priority: p})
}

// Close releases this client's reference on the shared store. It is
// synchronous because the caller usually needs to know the outcome
// immediately (e.g., test tear-down). Closing twice is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	return classifyError(c.rm.stores.Release(c.cfg))
}

func (c *Client) collectionOptions() []collection.Option {
	return []collection.Option{collection.WithLogger(c.rm.logger)}
}

func (c *Client) toObject(v any) *sobek.Object {
	rt := c.vu.Runtime()

	return rt.ToValue(v).ToObject(rt)
}

// throw raises err as a JS exception; it does not return.
func (c *Client) throw(err error) {
	common.Throw(c.vu.Runtime(), classifyError(err))
}

// storeClosedError produces a consistent error for calls after close().
func storeClosedError() error {
	return NewError(StoreClosedError, "client is closed")
}

// rejected returns a promise that is already rejected with err.
func (c *Client) rejected(err error) *sobek.Promise {
	p, _, reject := promises.New(c.vu)
	reject(classifyError(err))

	return p
}

// runAsync executes a blocking collection operation on a worker goroutine
// and bridges its result back to JavaScript by resolving a Sobek promise on
// the VU's event loop. Sobek promises are not goroutine-safe, so resolve and
// reject must run on the event loop thread via VU.RegisterCallback().
func (c *Client) runAsync(
	operation func(ctx context.Context) (any, error),
	toJS func(rt *sobek.Runtime, result any) sobek.Value,
) *sobek.Promise {
	if c.closed.Load() {
		return c.rejected(storeClosedError())
	}

	rt := c.vu.Runtime()
	promise, resolve, reject := rt.NewPromise()

	callback := c.vu.RegisterCallback()

	ctx := c.vu.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		result, err := operation(ctx)
		if err != nil {
			callback(func() error {
				return reject(classifyError(err))
			})

			return
		}

		callback(func() error {
			return resolve(toJS(rt, result))
		})
	}()

	return promise
}

// Result converters shared by the facades.

func toJSValue(rt *sobek.Runtime, result any) sobek.Value {
	return rt.ToValue(result)
}

func toJSArray(rt *sobek.Runtime, result any) sobek.Value {
	values, _ := result.([]any)

	return rt.NewArray(values...)
}

// optional is the result of a read that may find nothing.
type optional struct {
	value any
	ok    bool
}

func toJSOptional(rt *sobek.Runtime, result any) sobek.Value {
	opt, _ := result.(optional)
	if !opt.ok {
		return sobek.Null()
	}

	return rt.ToValue(opt.value)
}

func scoredToJS(item collection.Scored[any]) map[string]any {
	return map[string]any{"value": item.Value, "score": item.Score}
}

func argInt(v sobek.Value) (int64, error) {
	n, ok, err := exportedInt(v.Export())
	if !ok {
		return 0, fmt.Errorf("unsupported numeric type: %T", v.Export())
	}

	return n, err
}
