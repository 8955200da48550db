package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

// testBackend describes one Store implementation under the shared suite.
type testBackend struct {
	name string
	// rollsBack is false for backends whose batches are not all-or-nothing.
	rollsBack bool
	open      func(t *testing.T) Store
}

// testBackends returns one factory per backend. Each call of open yields a
// fresh, opened store that is closed when the test ends.
func testBackends() []testBackend {
	return []testBackend{
		{
			name:      BackendMemory,
			rollsBack: true,
			open: func(t *testing.T) Store {
				t.Helper()

				return openForTest(t, NewMemoryStore(&MemoryConfig{ShardCount: 4}))
			},
		},
		{
			name:      BackendDisk,
			rollsBack: true,
			open: func(t *testing.T) Store {
				t.Helper()

				path := filepath.Join(t.TempDir(), "qr.db")

				return openForTest(t, NewDiskStore(path, DiskConfig{NoSync: true}))
			},
		},
		{
			name:      BackendPebble,
			rollsBack: true,
			open: func(t *testing.T) Store {
				t.Helper()

				return openForTest(t, NewPebbleStore(t.TempDir(), PebbleConfig{NoSync: true}))
			},
		},
		{
			name:      BackendRedis,
			rollsBack: false,
			open: func(t *testing.T) Store {
				t.Helper()

				server := miniredis.RunT(t)

				return openForTest(t, NewRedisStore(RedisConfig{Addr: server.Addr()}))
			},
		},
	}
}

func openForTest(t *testing.T, s Store) Store {
	t.Helper()

	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// execOK runs batch and fails the test on error.
func execOK(t *testing.T, s Store, batch *Batch) []Reply {
	t.Helper()

	replies, err := s.Exec(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, replies, batch.Len())

	return replies
}

// listOf returns the whole list at key as strings.
func listOf(t *testing.T, s Store, key string) []string {
	t.Helper()

	replies := execOK(t, s, NewBatch().Range(key, 0, -1))

	out := make([]string, 0, len(replies[0].Values))
	for _, v := range replies[0].Values {
		out = append(out, string(v))
	}

	return out
}

// values converts strings to byte slices.
func values(items ...string) [][]byte {
	out := make([][]byte, len(items))
	for i, s := range items {
		out[i] = []byte(s)
	}

	return out
}
