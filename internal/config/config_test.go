package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/xk6-qr/internal/gateway"
	"github.com/oshokin/xk6-qr/qr/collection"
	"github.com/oshokin/xk6-qr/qr/store"
)

const sampleConfig = `
listen: ":9090"
log_level: debug
max_wait: 5s
store:
  backend: Disk
  path: ./qr.db
  disk:
    timeout: 1s
    nosync: true
collections:
  - key: jobs
    kind: queue
  - key: recent
    kind: capped
    size: 3
  - key: ranked
    kind: priority
`

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "qrd.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	f, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9090", f.Listen)
	require.Equal(t, 5*time.Second, f.MaxWait)
	require.Equal(t, store.BackendDisk, f.Store.Backend)
	require.Equal(t, "./qr.db", f.Store.Path)
	require.Equal(t, store.DiskConfig{Timeout: time.Second, NoSync: true}, f.Store.Disk)

	level, err := f.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	recent, ok := f.Collection("recent")
	require.True(t, ok)
	require.Equal(t, gateway.Collection{Key: "recent", Kind: collection.KindCapped, Size: 3}, recent)

	_, ok = f.Collection("missing")
	require.False(t, ok)
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	f, err := Parse([]byte("collections: []\n"))
	require.NoError(t, err)

	require.Equal(t, DefaultListenAddr, f.Listen)
	require.Equal(t, DefaultMaxWait, f.MaxWait)
	require.Equal(t, store.BackendMemory, f.Store.Backend)

	level, err := f.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
}

func TestParseRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		yaml   string
		expect error
	}{
		{name: "syntax", yaml: "listen: [", expect: ErrParseFailed},
		{name: "unknown field", yaml: "listen: ':1'\nport: 80\n", expect: ErrParseFailed},
		{name: "bad level", yaml: "log_level: loud\n", expect: ErrInvalid},
		{name: "unknown kind", yaml: "collections:\n  - key: a\n    kind: heap\n", expect: gateway.ErrUnknownKind},
		{name: "capped without size", yaml: "collections:\n  - key: a\n    kind: capped\n", expect: collection.ErrInvalidSize},
		{name: "duplicate key", yaml: "collections:\n  - key: a\n    kind: queue\n  - key: a\n    kind: stack\n", expect: ErrInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tc.yaml))
			require.ErrorIs(t, err, tc.expect)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.ErrorIs(t, err, ErrReadFailed)
}
