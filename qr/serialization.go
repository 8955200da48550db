package qr

import (
	"fmt"

	"github.com/oshokin/xk6-qr/qr/codec"
)

// newCodec builds the value codec for normalized options.
func newCodec(opts Options) (codec.Codec[any], error) {
	var c codec.Codec[any]

	switch opts.Serialization {
	case SerializationJSON:
		c = codec.JSON[any]{}
	case SerializationString:
		c = stringCodec()
	default:
		// Unreachable: serialization is validated in NewOptionsFrom.
		return nil, fmt.Errorf("%w: %s", ErrUnknownSerialization, opts.Serialization)
	}

	if opts.Compression == CompressionSnappy {
		c = codec.Snappy(c)
	}

	return c, nil
}

// stringCodec stores strings verbatim and hands them back as strings.
func stringCodec() codec.Codec[any] {
	var inner codec.String

	return codec.Func[any]{
		EncodeFunc: func(v any) ([]byte, error) {
			switch x := v.(type) {
			case string:
				return inner.Encode(x)
			case []byte:
				return inner.Encode(string(x))
			default:
				return nil, fmt.Errorf("%w: %T; string serialization stores strings only", ErrUnsupportedValue, v)
			}
		},
		DecodeFunc: func(b []byte) (any, error) {
			return inner.Decode(b)
		},
	}
}
