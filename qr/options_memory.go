package qr

import (
	"github.com/oshokin/xk6-qr/qr/store"
)

// MemoryOptions exposes memory backend tuning knobs.
type MemoryOptions struct {
	// ShardCount sets the number of shards for the memory backend.
	// If <= 0, defaults to runtime.NumCPU() (automatic).
	// If > store.MaxShardCount, capped at store.MaxShardCount.
	ShardCount int `js:"shardCount"`
}

// toMemoryConfig resolves the shard count so automatic and explicit
// equivalents select the same store.
func (mo *MemoryOptions) toMemoryConfig() (store.MemoryConfig, error) {
	var cfg store.MemoryConfig
	if mo != nil {
		cfg.ShardCount = mo.ShardCount
	}

	cfg.ShardCount = cfg.GetShardCount()

	return cfg, nil
}
