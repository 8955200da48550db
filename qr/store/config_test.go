package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestConfig_Normalized(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Config{Backend: BackendMemory}, Config{}.Normalized())
	assert.Equal(t, Config{Backend: " Disk "}.Normalized(), Config{Backend: "disk", Path: DefaultDiskStorePath}.Normalized())
	assert.Equal(t, DefaultPebbleStorePath, Config{Backend: BackendPebble}.Normalized().Path)
	assert.Equal(t, DefaultRedisAddr, Config{Backend: BackendRedis}.Normalized().Redis.Addr)
	assert.NotEqual(t,
		Config{Backend: BackendMemory, Memory: MemoryConfig{ShardCount: 2}}.Normalized(),
		Config{Backend: BackendMemory}.Normalized())
}

func TestNew(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cfg  Config
		want any
	}{
		{Config{}, &MemoryStore{}},
		{Config{Backend: BackendDisk, Path: filepath.Join(t.TempDir(), "f.db")}, &DiskStore{}},
		{Config{Backend: BackendPebble, Path: t.TempDir()}, &PebbleStore{}},
		{Config{Backend: BackendRedis}, &RedisStore{}},
	}

	for _, tc := range cases {
		s, err := New(tc.cfg)
		require.NoError(t, err)
		assert.IsType(t, tc.want, s)
	}

	_, err := New(Config{Backend: "tape"})
	require.ErrorIs(t, err, ErrUnknownBackend)

	_, err = New(Config{Backend: BackendDisk, Disk: DiskConfig{FreelistType: "tree"}})
	require.ErrorIs(t, err, ErrConfigInvalid)

	_, err = New(Config{Backend: BackendPebble, Pebble: PebbleConfig{CacheSize: -1}})
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestBuildBBoltOptions(t *testing.T) {
	t.Parallel()

	opts, err := buildBBoltOptions(DiskConfig{
		Timeout:         time.Second,
		NoSync:          true,
		FreelistType:    "MAP",
		InitialMmapSize: 1 << 20,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Second, opts.Timeout)
	assert.True(t, opts.NoSync)
	assert.Equal(t, bolt.FreelistMapType, opts.FreelistType)
	assert.Equal(t, 1<<20, opts.InitialMmapSize)

	_, err = buildBBoltOptions(DiskConfig{InitialMmapSize: -1})
	require.ErrorIs(t, err, ErrConfigInvalid)

	_, err = buildBBoltOptions(DiskConfig{Timeout: -time.Second})
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestResolveDiskPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := ResolveDiskPath(dir, DefaultDiskStorePath, false)
	require.ErrorIs(t, err, ErrDiskPathIsDirectory)

	got, err := ResolveDiskPath(dir, DefaultPebbleStorePath, true)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = ResolveDiskPath("  ", DefaultDiskStorePath, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultDiskStorePath, filepath.Base(got))
}
