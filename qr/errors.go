package qr

import (
	"errors"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

var (
	// ErrOptionsInvalid indicates openQr() received options it cannot use.
	ErrOptionsInvalid = errors.New("invalid qr options")
	// ErrUnknownSerialization is returned for an unrecognized serialization name.
	ErrUnknownSerialization = errors.New("unknown serialization")
	// ErrUnknownCompression is returned for an unrecognized compression name.
	ErrUnknownCompression = errors.New("unknown compression")
	// ErrUnsupportedValue is returned when the string serialization gets a non-string value.
	ErrUnsupportedValue = errors.New("unsupported value type")
)

var _ error = (*Error)(nil)

// ErrorName represents the name of an error.
type ErrorName string

const (
	// BucketNotFoundError is emitted when the disk store bucket is missing.
	BucketNotFoundError ErrorName = "BucketNotFoundError"

	// DiskPathError is emitted when disk path resolution or directory creation fails.
	DiskPathError ErrorName = "DiskPathError"

	// DumpError is emitted when dump() cannot write its file.
	DumpError ErrorName = "DumpError"

	// InvalidKeyError is emitted for empty, oversized or NUL-containing collection keys.
	InvalidKeyError ErrorName = "InvalidKeyError"

	// InvalidScoreError is emitted when a priority is NaN or not a number.
	InvalidScoreError ErrorName = "InvalidScoreError"

	// InvalidSizeError is emitted when a capped collection size is below 1.
	InvalidSizeError ErrorName = "InvalidSizeError"

	// LoadError is emitted when load() cannot read or parse its file.
	LoadError ErrorName = "LoadError"

	// OptionsInvalidError is emitted when openQr() options fail validation.
	OptionsInvalidError ErrorName = "OptionsInvalidError"

	// SerializerError is emitted when a value cannot be encoded or decoded.
	SerializerError ErrorName = "SerializerError"

	// StoreClosedError is emitted when a store is used after close().
	StoreClosedError ErrorName = "StoreClosedError"

	// StoreOpenError is emitted when a backend cannot be opened or reached.
	StoreOpenError ErrorName = "StoreOpenError"

	// StoreReadError is emitted when reads from the backend fail.
	StoreReadError ErrorName = "StoreReadError"

	// StoreWriteError is emitted when writes to the backend fail.
	StoreWriteError ErrorName = "StoreWriteError"

	// ValueNumberRequiredError is emitted when a numeric argument cannot be coerced to a number.
	ValueNumberRequiredError ErrorName = "ValueNumberRequiredError"

	// WrongTypeError is emitted when a list collection and a priority queue share a key.
	WrongTypeError ErrorName = "WrongTypeError"
)

// Error represents a custom error emitted by the qr module.
type Error struct {
	// Name contains one of the strings associated with an error name.
	Name ErrorName `json:"name"`

	// Message represents message or description associated with the given error name.
	Message string `json:"message"`
}

// NewError returns a new Error instance.
func NewError(name ErrorName, message string) *Error {
	return &Error{
		Name:    name,
		Message: message,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Name) + ": " + e.Message
}

// classifyError downgrades internal Go errors to structured qr errors for JS.
//
//nolint:cyclop // one case per error family.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var qrErr *Error
	if errors.As(err, &qrErr) {
		return qrErr
	}

	switch {
	case errors.Is(err, store.ErrClosed):
		return NewError(StoreClosedError, err.Error())
	case errors.Is(err, store.ErrInvalidKey):
		return NewError(InvalidKeyError, err.Error())
	case errors.Is(err, store.ErrInvalidScore):
		return NewError(InvalidScoreError, err.Error())
	case errors.Is(err, collection.ErrInvalidSize):
		return NewError(InvalidSizeError, err.Error())
	case errors.Is(err, store.ErrWrongType):
		return NewError(WrongTypeError, err.Error())
	case errors.Is(err, collection.ErrDumpFailed):
		return NewError(DumpError, err.Error())
	case errors.Is(err, collection.ErrLoadFailed):
		return NewError(LoadError, err.Error())
	case errors.Is(err, collection.ErrEncodeFailed),
		errors.Is(err, codec.ErrEncode),
		errors.Is(err, codec.ErrDecode),
		errors.Is(err, ErrUnsupportedValue):
		return NewError(SerializerError, err.Error())
	case errors.Is(err, store.ErrDiskPathResolveFailed),
		errors.Is(err, store.ErrDiskPathIsDirectory),
		errors.Is(err, store.ErrDiskDirectoryCreateFailed):
		return NewError(DiskPathError, err.Error())
	case errors.Is(err, store.ErrDiskStoreOpenFailed),
		errors.Is(err, store.ErrPebbleStoreOpenFailed),
		errors.Is(err, store.ErrRedisConnectFailed),
		errors.Is(err, store.ErrBoltDBBucketCreateFailed):
		return NewError(StoreOpenError, err.Error())
	case errors.Is(err, store.ErrBucketNotFound):
		return NewError(BucketNotFoundError, err.Error())
	case errors.Is(err, store.ErrStoreReadFailed),
		errors.Is(err, store.ErrMetaDecodeFailed):
		return NewError(StoreReadError, err.Error())
	case errors.Is(err, store.ErrStoreWriteFailed):
		return NewError(StoreWriteError, err.Error())
	case errors.Is(err, ErrOptionsInvalid),
		errors.Is(err, ErrUnknownSerialization),
		errors.Is(err, ErrUnknownCompression),
		errors.Is(err, store.ErrUnknownBackend),
		errors.Is(err, store.ErrConfigInvalid):
		return NewError(OptionsInvalidError, err.Error())
	}

	return err
}
