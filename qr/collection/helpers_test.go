package collection

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/xk6-qr/qr/store"
)

type backendCase struct {
	name string
	open func(t *testing.T) store.Store
}

// backends lists the stores the collection scenarios run against.
func backends() []backendCase {
	return []backendCase{
		{
			name: store.BackendMemory,
			open: func(t *testing.T) store.Store {
				t.Helper()

				return openStore(t, store.NewMemoryStore(&store.MemoryConfig{ShardCount: 4}))
			},
		},
		{
			name: store.BackendDisk,
			open: func(t *testing.T) store.Store {
				t.Helper()

				path := filepath.Join(t.TempDir(), "qr.db")

				return openStore(t, store.NewDiskStore(path, store.DiskConfig{NoSync: true}))
			},
		},
		{
			name: store.BackendRedis,
			open: func(t *testing.T) store.Store {
				t.Helper()

				server := miniredis.RunT(t)

				return openStore(t, store.NewRedisStore(store.RedisConfig{Addr: server.Addr()}))
			},
		},
	}
}

func openStore(t *testing.T, s store.Store) store.Store {
	t.Helper()

	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func memoryStore(t *testing.T) store.Store {
	t.Helper()

	return openStore(t, store.NewMemoryStore(nil))
}

// logBuffer is a goroutine-safe sink for a text slog handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func captureLogger() (*slog.Logger, *logBuffer) {
	sink := &logBuffer{}

	return slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug})), sink
}

// failingWriter rejects every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWriteRefused
}
