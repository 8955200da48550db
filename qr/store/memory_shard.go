package store

import (
	"slices"
	"sync"

	xxhash "github.com/cespare/xxhash/v2"
)

type (
	// memoryShard holds the lists and sorted sets whose keys hash to it.
	// A key lives in at most one of the two maps.
	memoryShard struct {
		// lists maps keys to list values.
		lists map[string]*memoryList
		// sets maps keys to sorted-set values.
		sets map[string]*scoreSet
		// mu is the mutex to protect the shard.
		mu sync.Mutex
	}

	// scoreSet is an in-memory sorted set: member lookup plus rank order.
	scoreSet struct {
		scores map[string]float64
		tree   *OSTree
	}

	// shardHashFunc is the function to use to hash the key to a shard.
	shardHashFunc func(string) uint64
)

func newMemoryShard() *memoryShard {
	return &memoryShard{
		lists: make(map[string]*memoryList),
		sets:  make(map[string]*scoreSet),
	}
}

func newScoreSet() *scoreSet {
	return &scoreSet{
		scores: make(map[string]float64),
		tree:   NewOSTree(),
	}
}

// xxhashShardHash is the function to use to hash the key to a shard using xxhash.
func xxhashShardHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

// hashKey hashes the key to a shard index.
func (s *MemoryStore) hashKey(key string) int {
	if s.shardCount == 1 {
		return 0
	}

	hashFn := s.hashFn
	if hashFn == nil {
		hashFn = xxhashShardHash
	}

	//nolint:gosec // shardCount is always >= 1, see NewMemoryStore.
	return int(hashFn(key) % uint64(s.shardCount))
}

// getShardByKey gets the shard by the key.
func (s *MemoryStore) getShardByKey(key string) *memoryShard {
	return s.shards[s.hashKey(key)]
}

// lockBatchShards locks every shard touched by batch in ascending index order
// and returns the function that unlocks them in reverse order.
func (s *MemoryStore) lockBatchShards(batch *Batch) func() {
	indexes := make([]int, 0, batch.Len())
	for _, op := range batch.Ops() {
		indexes = append(indexes, s.hashKey(op.Key))
	}

	slices.Sort(indexes)
	indexes = slices.Compact(indexes)

	for _, idx := range indexes {
		s.shards[idx].mu.Lock()
	}

	return func() {
		for i := len(indexes) - 1; i >= 0; i-- {
			s.shards[indexes[i]].mu.Unlock()
		}
	}
}
