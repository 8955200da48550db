package qr

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/xk6-qr/qr/store"
)

func TestMemoryOptionsResolveShardCount(t *testing.T) {
	t.Parallel()

	auto := runtime.NumCPU()
	if auto > store.MaxShardCount {
		auto = store.MaxShardCount
	}

	testCases := []struct {
		name    string
		options *MemoryOptions
		expect  int
	}{
		{name: "nil options", options: nil, expect: auto},
		{name: "zero shard count", options: new(MemoryOptions), expect: auto},
		{name: "negative shard count", options: &MemoryOptions{ShardCount: -1}, expect: auto},
		{name: "explicit shard count", options: &MemoryOptions{ShardCount: 64}, expect: 64},
		{name: "capped shard count", options: &MemoryOptions{ShardCount: store.MaxShardCount + 1}, expect: store.MaxShardCount},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := tc.options.toMemoryConfig()
			require.NoError(t, err)
			require.Equal(t, tc.expect, cfg.ShardCount)
		})
	}
}

func TestMemoryOptionsAutoEquivalentsShareConfig(t *testing.T) {
	t.Parallel()

	left, err := Options{Backend: BackendMemory}.ToStoreConfig()
	require.NoError(t, err)

	right, err := Options{Backend: BackendMemory, MemoryOptions: &MemoryOptions{ShardCount: runtime.NumCPU()}}.ToStoreConfig()
	require.NoError(t, err)

	require.Equal(t, left, right)
}
