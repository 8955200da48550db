package store

import "runtime"

// MaxShardCount bounds MemoryConfig.ShardCount. Lists are small and a batch
// locks each shard it touches once, so more shards only cost memory.
const MaxShardCount = 65536

// MemoryConfig tunes the memory backend.
type MemoryConfig struct {
	// ShardCount is the number of independently locked key shards.
	// Zero or negative means one shard per CPU.
	ShardCount int
}

// GetShardCount resolves ShardCount to the value the store actually uses.
// A nil config resolves like a zero one.
func (cfg *MemoryConfig) GetShardCount() int {
	if cfg == nil || cfg.ShardCount <= 0 {
		return min(max(1, runtime.NumCPU()), MaxShardCount)
	}

	return min(cfg.ShardCount, MaxShardCount)
}
