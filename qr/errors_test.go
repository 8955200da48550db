package qr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/xk6-qr/qr/codec"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		err    error
		expect ErrorName
	}{
		{name: "closed store", err: store.ErrClosed, expect: StoreClosedError},
		{name: "invalid key", err: fmt.Errorf("key %q: %w", "", store.ErrInvalidKey), expect: InvalidKeyError},
		{name: "invalid score", err: store.ErrInvalidScore, expect: InvalidScoreError},
		{name: "invalid size", err: collection.ErrInvalidSize, expect: InvalidSizeError},
		{name: "wrong type", err: store.ErrWrongType, expect: WrongTypeError},
		{name: "dump", err: collection.ErrDumpFailed, expect: DumpError},
		{name: "load", err: collection.ErrLoadFailed, expect: LoadError},
		{name: "encode", err: fmt.Errorf("wrap: %w", codec.ErrEncode), expect: SerializerError},
		{name: "string serialization", err: ErrUnsupportedValue, expect: SerializerError},
		{name: "disk path", err: store.ErrDiskPathIsDirectory, expect: DiskPathError},
		{name: "redis connect", err: store.ErrRedisConnectFailed, expect: StoreOpenError},
		{name: "store read", err: store.ErrStoreReadFailed, expect: StoreReadError},
		{name: "store write", err: store.ErrStoreWriteFailed, expect: StoreWriteError},
		{name: "unknown backend", err: store.ErrUnknownBackend, expect: OptionsInvalidError},
		{name: "bad compression", err: ErrUnknownCompression, expect: OptionsInvalidError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var qrErr *Error

			require.ErrorAs(t, classifyError(tc.err), &qrErr)
			require.Equal(t, tc.expect, qrErr.Name)
			require.Contains(t, qrErr.Error(), string(tc.expect)+": ")
		})
	}
}

func TestClassifyErrorPassesThrough(t *testing.T) {
	t.Parallel()

	require.NoError(t, classifyError(nil))

	structured := NewError(ValueNumberRequiredError, "index must be a number")
	require.Same(t, structured, classifyError(fmt.Errorf("wrapped: %w", structured)))

	unknown := errors.New("something else")
	require.Equal(t, unknown, classifyError(unknown))
}

func TestParseDurationValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		value   any
		expect  string
		wantErr bool
	}{
		{name: "milliseconds", value: int64(250), expect: "250ms"},
		{name: "whole float", value: 1500.0, expect: "1.5s"},
		{name: "duration string", value: "2m", expect: "2m0s"},
		{name: "fractional milliseconds", value: 1.5, wantErr: true},
		{name: "negative", value: -1, wantErr: true},
		{name: "negative string", value: "-1s", wantErr: true},
		{name: "boolean", value: true, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseDurationValue(tc.value)
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expect, got.String())
		})
	}
}

func TestParseSizeAndScoreValues(t *testing.T) {
	t.Parallel()

	size, err := parseSizeValue("64mb")
	require.NoError(t, err)
	require.Equal(t, uint64(64_000_000), size)

	size, err = parseSizeValue(int64(4096))
	require.NoError(t, err)
	require.Equal(t, uint64(4096), size)

	_, err = parseSizeValue(-1)
	require.Error(t, err)

	score, err := parseScoreValue(int64(3))
	require.NoError(t, err)
	require.InDelta(t, 3.0, score, 0)

	score, err = parseScoreValue(-0.25)
	require.NoError(t, err)
	require.InDelta(t, -0.25, score, 0)

	_, err = parseScoreValue("high")
	require.ErrorIs(t, err, store.ErrInvalidScore)
}
