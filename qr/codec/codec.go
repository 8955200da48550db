// Package codec converts collection elements to and from the opaque bytes
// stored by the store package.
//
// A Codec must round-trip: Decode(Encode(v)) == v for every supported v.
// Decode failures are always reported as errors wrapping ErrDecode, so
// callers can tell corrupt or foreign data apart from transport failures.
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrEncode is wrapped by every encoding failure.
	ErrEncode = errors.New("codec encode failed")
	// ErrDecode is wrapped by every decoding failure.
	ErrDecode = errors.New("codec decode failed")
)

// Codec is a reversible mapping between T and bytes.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

// Func adapts a pair of functions to Codec.
type Func[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

// Encode implements Codec.
func (f Func[T]) Encode(v T) ([]byte, error) {
	b, err := f.EncodeFunc(v)
	if err != nil {
		return nil, encodeError(err)
	}

	return b, nil
}

// Decode implements Codec.
func (f Func[T]) Decode(b []byte) (T, error) {
	v, err := f.DecodeFunc(b)
	if err != nil {
		var zero T

		return zero, decodeError(err)
	}

	return v, nil
}

func encodeError(err error) error {
	if errors.Is(err, ErrEncode) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrEncode, err)
}

func decodeError(err error) error {
	if errors.Is(err, ErrDecode) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrDecode, err)
}
