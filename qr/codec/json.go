package codec

import (
	"encoding/json"
)

// JSON encodes values with encoding/json.
type JSON[T any] struct{}

// Encode implements Codec.
func (JSON[T]) Encode(v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, encodeError(err)
	}

	return b, nil
}

// Decode implements Codec.
func (JSON[T]) Decode(b []byte) (T, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		var zero T

		return zero, decodeError(err)
	}

	return v, nil
}
