package codec

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// MsgpMessage is satisfied by pointers to msgp-generated types.
type MsgpMessage[T any] interface {
	*T
	msgp.Marshaler
	msgp.Unmarshaler
}

// Msgp encodes values of msgp-generated types.
type Msgp[T any, PT MsgpMessage[T]] struct{}

// NewMsgp returns the MessagePack codec for T.
//
//	codec.NewMsgp[Job]()
func NewMsgp[T any, PT MsgpMessage[T]]() Codec[T] {
	return Msgp[T, PT]{}
}

// Encode implements Codec.
func (Msgp[T, PT]) Encode(v T) ([]byte, error) {
	b, err := PT(&v).MarshalMsg(nil)
	if err != nil {
		return nil, encodeError(err)
	}

	return b, nil
}

// Decode implements Codec. Trailing bytes after the message are rejected.
func (Msgp[T, PT]) Decode(b []byte) (T, error) {
	var v T

	rest, err := PT(&v).UnmarshalMsg(b)
	if err != nil {
		var zero T

		return zero, decodeError(err)
	}

	if len(rest) > 0 {
		var zero T

		return zero, fmt.Errorf("%w: %d trailing bytes", ErrDecode, len(rest))
	}

	return v, nil
}
