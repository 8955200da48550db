package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// entryCount reads the number of keys held by a shard.
func (sh *memoryShard) entryCount() int {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	return len(sh.lists) + len(sh.sets)
}

// TestNewMemoryStore verifies the shard layout follows the config.
func TestNewMemoryStore(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(&MemoryConfig{ShardCount: 8})

	require.Len(t, s.shards, 8)
	assert.Equal(t, 8, s.shardCount)

	for _, sh := range s.shards {
		assert.Zero(t, sh.entryCount(), "new shards must be empty")
	}

	assert.Len(t, NewMemoryStore(&MemoryConfig{ShardCount: MaxShardCount + 1}).shards, MaxShardCount)
	assert.NotEmpty(t, NewMemoryStore(nil).shards)
}

// TestMemoryStore_RollbackRestoresEveryOp runs a batch that mutates several
// keys through every kind of primitive and then fails, and checks nothing changed.
func TestMemoryStore_RollbackRestoresEveryOp(t *testing.T) {
	t.Parallel()

	s := openForTest(t, NewMemoryStore(&MemoryConfig{ShardCount: 3}))

	execOK(t, s, NewBatch().
		PushRight("list", values("a", "b", "c", "d", "e")...).
		PushRight("other", values("x")...).
		ScoreAdd("set",
			ScoredMember{Member: []byte("m1"), Score: 1},
			ScoredMember{Member: []byte("m2"), Score: 2},
		))

	_, err := s.Exec(context.Background(), NewBatch().
		PushLeft("list", values("p", "q")...).
		PopRight("list").
		Trim("list", 1, 3).
		PopLeft("other").
		Delete("set2").
		ScoreAdd("set", ScoredMember{Member: []byte("m1"), Score: 9}, ScoredMember{Member: []byte("m3"), Score: 0}).
		ScoreRemoveRangeByRank("set", 0, 0).
		PushLeft("fresh", values("z")...).
		Delete("other").
		ScoreCard("list"))
	require.ErrorIs(t, err, ErrWrongType)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, listOf(t, s, "list"))
	assert.Equal(t, []string{"x"}, listOf(t, s, "other"))
	assert.Empty(t, listOf(t, s, "fresh"))

	replies := execOK(t, s, NewBatch().ScoreRange("set", 0, -1))
	assert.Equal(t, []ScoredMember{
		{Member: []byte("m1"), Score: 1},
		{Member: []byte("m2"), Score: 2},
	}, replies[0].Members)
}

// TestMemoryStore_CrossShardBatch checks a batch spanning many shards is
// applied atomically while other goroutines hammer the same keys.
func TestMemoryStore_CrossShardBatch(t *testing.T) {
	t.Parallel()

	s := openForTest(t, NewMemoryStore(&MemoryConfig{ShardCount: 16}))

	keys := make([]string, 32)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 50 {
				batch := NewBatch()
				for _, k := range keys {
					batch.PushLeft(k, []byte("v"))
				}

				_, _ = s.Exec(context.Background(), batch)
			}
		}()
	}

	wg.Wait()

	for _, k := range keys {
		replies := execOK(t, s, NewBatch().Length(k))
		assert.Equalf(t, int64(400), replies[0].Count, "key %s", k)
	}
}

// TestMemoryList_Ends exercises the two-slice list around its internal boundary.
func TestMemoryList_Ends(t *testing.T) {
	t.Parallel()

	l := new(memoryList)
	l.pushRight([]byte("c"))
	l.pushLeft([]byte("b"))
	l.pushLeft([]byte("a"))
	l.pushRight([]byte("d"))

	require.Equal(t, int64(4), l.len())
	assert.Equal(t, values("a", "b", "c", "d"), l.slice(0, 4))

	v, ok := l.popRight()
	require.True(t, ok)
	assert.Equal(t, "d", string(v))

	v, _ = l.popRight()
	assert.Equal(t, "c", string(v))

	// The right end is now served from the left part.
	v, _ = l.popRight()
	assert.Equal(t, "b", string(v))

	v, _ = l.popLeft()
	assert.Equal(t, "a", string(v))

	_, ok = l.popLeft()
	assert.False(t, ok)
}

// TestMemoryStore_ReopenKeepsData checks data survives Close/Open cycles.
func TestMemoryStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(nil)
	require.NoError(t, s.Open())
	execOK(t, s, NewBatch().PushLeft("k", []byte("v")))
	require.NoError(t, s.Close())

	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, []string{"v"}, listOf(t, s, "k"))
}
