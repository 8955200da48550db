package collection

import (
	"errors"

	"github.com/oshokin/xk6-qr/qr/store"
)

var (
	// ErrInvalidSize is returned when a capped collection is built with a size below 1.
	ErrInvalidSize = errors.New("capped collection size must be positive")
	// ErrInvalidScore is returned when a priority is NaN.
	ErrInvalidScore = store.ErrInvalidScore
	// ErrEncodeFailed wraps codec failures on the write path.
	ErrEncodeFailed = errors.New("element encode failed")
	// ErrDumpFailed indicates writing a dump stream failed after the collection was read.
	ErrDumpFailed = errors.New("collection dump failed")
	// ErrLoadFailed indicates a dump stream could not be parsed.
	ErrLoadFailed = errors.New("collection load failed")
	// ErrNilStore is returned when a collection is built without a store.
	ErrNilStore = errors.New("store is nil")
	// ErrNilCodec is returned when a collection is built without a codec.
	ErrNilCodec = errors.New("codec is nil")
)
