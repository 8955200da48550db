package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oshokin/xk6-qr/internal/gateway"
	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
	"github.com/oshokin/xk6-qr/qr/worker"
)

var errNotTailable = errors.New("collection has no blocking pop")

type tailOptions struct {
	out    io.Writer
	count  int64
	poll   time.Duration
	logger *slog.Logger
}

// line is one printed element.
type line struct {
	Worker     string    `json:"worker"`
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	ReceivedAt time.Time `json:"received_at"`
}

// tail pops coll until ctx is done or count elements were printed.
func tail(ctx context.Context, st store.Store, coll gateway.Collection, opts tailOptions) (worker.Stats, error) {
	source, err := newSource(st, coll, opts.logger)
	if err != nil {
		return worker.Stats{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		enc     = json.NewEncoder(opts.out)
		printed atomic.Int64
		id      string
	)

	w, err := worker.New(source, func(_ context.Context, v []byte) error {
		if err := enc.Encode(line{Worker: id, Key: coll.Key, Value: string(v), ReceivedAt: time.Now().UTC()}); err != nil {
			return fmt.Errorf("write line: %w", err)
		}

		if opts.count > 0 && printed.Add(1) >= opts.count {
			cancel()
		}

		return nil
	},
		worker.WithLogger(opts.logger),
		worker.WithObserver(worker.NewSlogObserver(opts.logger)),
		worker.WithTimeout(opts.poll),
	)
	if err != nil {
		return worker.Stats{}, err
	}

	id = w.ID()

	err = w.Run(ctx)

	return w.Stats(), err
}

func newSource(st store.Store, coll gateway.Collection, logger *slog.Logger) (worker.Source[[]byte], error) {
	var (
		raw  codec.Bytes
		opts = []collection.Option{collection.WithLogger(logger)}
	)

	switch coll.Kind {
	case collection.KindQueue:
		return collection.NewQueue[[]byte](st, coll.Key, raw, opts...)
	case collection.KindStack:
		return collection.NewStack[[]byte](st, coll.Key, raw, opts...)
	case collection.KindCapped:
		return collection.NewCapped[[]byte](st, coll.Key, coll.Size, raw, opts...)
	case collection.KindDeque:
		d, err := collection.NewDeque[[]byte](st, coll.Key, raw, opts...)
		if err != nil {
			return nil, err
		}

		return dequeFront{d}, nil
	default:
		return nil, fmt.Errorf("%w: %s %q", errNotTailable, coll.Kind, coll.Key)
	}
}

// dequeFront consumes a deque from the front.
type dequeFront struct {
	*collection.Deque[[]byte]
}

func (d dequeFront) PopWait(ctx context.Context, timeout time.Duration) ([]byte, bool, error) {
	return d.PopFrontWait(ctx, timeout)
}
