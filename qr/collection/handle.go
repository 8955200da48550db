package collection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/store"
)

// handle is the state shared by every collection flavor.
type handle[T any] struct {
	key    string
	kind   Kind
	store  store.Store
	codec  codec.Codec[T]
	logger *slog.Logger
}

func newHandle[T any](kind Kind, s store.Store, key string, c codec.Codec[T], opts []Option) (handle[T], error) {
	if s == nil {
		return handle[T]{}, ErrNilStore
	}

	if c == nil {
		return handle[T]{}, ErrNilCodec
	}

	if err := store.ValidateKey(key); err != nil {
		return handle[T]{}, err
	}

	o := buildOptions(opts)

	return handle[T]{
		key:    key,
		kind:   kind,
		store:  s,
		codec:  c,
		logger: o.logger.With(slog.String("collection", key), slog.String("kind", string(kind))),
	}, nil
}

// Key returns the store key the collection lives under.
func (h *handle[T]) Key() string {
	return h.key
}

// Kind returns the collection flavor.
func (h *handle[T]) Kind() Kind {
	return h.kind
}

func (h *handle[T]) exec(ctx context.Context, batch *store.Batch) ([]store.Reply, error) {
	return h.store.Exec(ctx, batch)
}

func (h *handle[T]) encode(v T) ([]byte, error) {
	raw, err := h.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrEncodeFailed, h.kind, h.key, err)
	}

	return raw, nil
}

func (h *handle[T]) encodeAll(values []T) ([][]byte, error) {
	out := make([][]byte, 0, len(values))

	for _, v := range values {
		raw, err := h.encode(v)
		if err != nil {
			return nil, err
		}

		out = append(out, raw)
	}

	return out, nil
}

// decode turns stored bytes into T, logging and reporting absence on failure.
func (h *handle[T]) decode(ctx context.Context, raw []byte) (T, bool) {
	v, err := h.codec.Decode(raw)
	if err != nil {
		h.logger.WarnContext(ctx, "skipping undecodable element",
			slog.Int("size", len(raw)),
			slog.Any("error", err))

		var zero T

		return zero, false
	}

	return v, true
}

func (h *handle[T]) decodeAll(ctx context.Context, raws [][]byte) []T {
	out := make([]T, 0, len(raws))

	for _, raw := range raws {
		if v, ok := h.decode(ctx, raw); ok {
			out = append(out, v)
		}
	}

	return out
}

// decodeReply decodes a pop or index reply.
func (h *handle[T]) decodeReply(ctx context.Context, r store.Reply) (T, bool) {
	if !r.Found {
		var zero T

		return zero, false
	}

	return h.decode(ctx, r.Value)
}

// Clear removes the collection.
func (h *handle[T]) Clear(ctx context.Context) error {
	_, err := h.exec(ctx, store.NewBatch().Delete(h.key))

	return err
}

// sliceStop converts a half-open upper bound into the inclusive stop of a
// range read. The second result is false when the slice is empty by construction.
func sliceStop(j int64) (int64, bool) {
	if j == 0 {
		return 0, false
	}

	return j - 1, true
}
