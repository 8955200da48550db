package codec

import (
	"github.com/golang/snappy"
)

// snappyCodec compresses the output of an inner codec with snappy block format.
type snappyCodec[T any] struct {
	inner Codec[T]
}

// Snappy wraps inner so stored elements are snappy-compressed.
func Snappy[T any](inner Codec[T]) Codec[T] {
	return snappyCodec[T]{inner: inner}
}

// Encode implements Codec.
func (c snappyCodec[T]) Encode(v T) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}

	return snappy.Encode(nil, raw), nil
}

// Decode implements Codec.
func (c snappyCodec[T]) Decode(b []byte) (T, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		var zero T

		return zero, decodeError(err)
	}

	return c.inner.Decode(raw)
}
