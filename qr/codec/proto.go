package codec

import (
	"google.golang.org/protobuf/proto"
)

// ProtoMessage is satisfied by pointers to generated protobuf messages.
type ProtoMessage[T any] interface {
	*T
	proto.Message
}

// Proto encodes protobuf messages in their binary wire format.
// Elements are handled as pointers: Codec[*T].
type Proto[T any, PT ProtoMessage[T]] struct{}

// NewProto returns the protobuf codec for message type T.
//
//	codec.NewProto[wrapperspb.StringValue]()
func NewProto[T any, PT ProtoMessage[T]]() Codec[PT] {
	return Proto[T, PT]{}
}

// Encode implements Codec.
func (Proto[T, PT]) Encode(v PT) ([]byte, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(v)
	if err != nil {
		return nil, encodeError(err)
	}

	return b, nil
}

// Decode implements Codec.
func (Proto[T, PT]) Decode(b []byte) (PT, error) {
	v := PT(new(T))
	if err := proto.Unmarshal(b, v); err != nil {
		return nil, decodeError(err)
	}

	return v, nil
}
