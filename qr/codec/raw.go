package codec

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// String stores strings as their UTF-8 bytes. Decoding rejects invalid UTF-8.
type String struct{}

// Encode implements Codec.
func (String) Encode(v string) ([]byte, error) {
	return []byte(v), nil
}

// Decode implements Codec.
func (String) Decode(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid UTF-8", ErrDecode)
	}

	return string(b), nil
}

// Bytes stores byte slices unchanged.
type Bytes struct{}

// Encode implements Codec.
func (Bytes) Encode(v []byte) ([]byte, error) {
	return slices.Clone(v), nil
}

// Decode implements Codec.
func (Bytes) Decode(b []byte) ([]byte, error) {
	return slices.Clone(b), nil
}
