package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory list and sorted-set store.
//
// Keys are spread over shards by xxhash. A batch locks every shard it touches
// for its whole duration, always in ascending shard order, which makes each
// batch indivisible without a store-wide lock. Failed batches are rolled back
// through an undo log, so a batch is also all-or-nothing.
//
// Data survives Close(); only blocking pops are released. Reopening the store
// resumes with the same contents.
type MemoryStore struct {
	shards     []*memoryShard
	shardCount int
	hashFn     shardHashFunc
	notify     *notifier

	lock     sync.Mutex
	refCount int64
	opened   bool
}

// NewMemoryStore creates a new MemoryStore using cfg for its shard layout.
func NewMemoryStore(cfg *MemoryConfig) *MemoryStore {
	shardCount := cfg.GetShardCount()

	shards := make([]*memoryShard, shardCount)
	for i := range shards {
		shards[i] = newMemoryShard()
	}

	return &MemoryStore{
		shards:     shards,
		shardCount: shardCount,
		hashFn:     xxhashShardHash,
		notify:     newNotifier(),
	}
}

// Open takes a reference on the store.
func (s *MemoryStore) Open() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.opened {
		s.notify.reset()
		s.opened = true
	}

	s.refCount++

	return nil
}

// Close releases one reference; the last one wakes all blocking pops.
func (s *MemoryStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.opened {
		return nil
	}

	s.refCount--
	if s.refCount > 0 {
		return nil
	}

	s.refCount = 0
	s.opened = false
	s.notify.shutdown()

	return nil
}

func (s *MemoryStore) isOpen() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.opened
}

// Exec runs batch under the locks of every shard it touches.
func (s *MemoryStore) Exec(ctx context.Context, batch *Batch) ([]Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !s.isOpen() {
		return nil, ErrClosed
	}

	if err := batch.validate(); err != nil {
		return nil, err
	}

	unlock := s.lockBatchShards(batch)

	tx := &memoryTxn{store: s}

	replies, err := tx.run(batch)
	if err != nil {
		tx.rollback()
	}

	unlock()

	if err != nil {
		return nil, err
	}

	s.notify.notify(pushedKeys(batch)...)

	return replies, nil
}

// BlockingPop pops from one side of the list at key, waiting for pushes.
func (s *MemoryStore) BlockingPop(
	ctx context.Context,
	key string,
	side Side,
	timeout time.Duration,
) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	return blockingPop(ctx, s.notify, key, timeout, func() ([]byte, bool, error) {
		return popOnce(ctx, s, key, side)
	})
}

// popOnce runs a single non-blocking pop through st.
func popOnce(ctx context.Context, st Store, key string, side Side) ([]byte, bool, error) {
	batch := NewBatch()
	if side == Right {
		batch.PopRight(key)
	} else {
		batch.PopLeft(key)
	}

	replies, err := st.Exec(ctx, batch)
	if err != nil {
		return nil, false, err
	}

	return replies[0].Value, replies[0].Found, nil
}

// memoryTxn applies one batch and records how to undo it.
type memoryTxn struct {
	store *MemoryStore
	undo  []func()
}

func (tx *memoryTxn) onRollback(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *memoryTxn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}

	tx.undo = nil
}

func (tx *memoryTxn) run(batch *Batch) ([]Reply, error) {
	replies := make([]Reply, 0, batch.Len())

	for _, op := range batch.Ops() {
		reply, err := tx.apply(op)
		if err != nil {
			return nil, err
		}

		replies = append(replies, reply)
	}

	return replies, nil
}

//nolint:cyclop,funlen // dispatch over every primitive.
func (tx *memoryTxn) apply(op Op) (Reply, error) {
	sh := tx.store.getShardByKey(op.Key)

	switch op.Kind {
	case OpPushLeft, OpPushRight:
		return tx.push(sh, op)
	case OpPopLeft, OpPopRight:
		return tx.pop(sh, op)
	case OpTrim:
		return Reply{}, tx.trim(sh, op)
	case OpRange:
		l, err := tx.list(sh, op.Key)
		if err != nil || l == nil {
			return Reply{Values: [][]byte{}}, err
		}

		lo, hi, ok := normalizeRange(op.Start, op.Stop, l.len())
		if !ok {
			return Reply{Values: [][]byte{}}, nil
		}

		return Reply{Values: cloneValues(l.slice(lo, hi))}, nil
	case OpIndex:
		l, err := tx.list(sh, op.Key)
		if err != nil || l == nil {
			return Reply{}, err
		}

		i, ok := normalizeIndex(op.Start, l.len())
		if !ok {
			return Reply{}, nil
		}

		return Reply{Value: slices.Clone(l.at(i)), Found: true}, nil
	case OpLength:
		l, err := tx.list(sh, op.Key)
		if err != nil || l == nil {
			return Reply{}, err
		}

		return Reply{Count: l.len()}, nil
	case OpDelete:
		return tx.delete(sh, op.Key), nil
	case OpScoreAdd:
		return tx.scoreAdd(sh, op)
	case OpScoreRange:
		set, err := tx.set(sh, op.Key)
		if err != nil || set == nil {
			return Reply{Members: []ScoredMember{}}, err
		}

		lo, hi, ok := normalizeRange(op.Start, op.Stop, int64(set.tree.Len()))
		if !ok {
			return Reply{Members: []ScoredMember{}}, nil
		}

		return Reply{Members: set.tree.Range(int(lo), int(hi))}, nil
	case OpScoreRemoveRangeByRank:
		return tx.scoreRemoveRange(sh, op)
	case OpScoreCard:
		set, err := tx.set(sh, op.Key)
		if err != nil || set == nil {
			return Reply{}, err
		}

		return Reply{Count: int64(len(set.scores))}, nil
	default:
		return Reply{}, ErrUnknownOp
	}
}

// list returns the list at key, nil when absent, or ErrWrongType.
func (tx *memoryTxn) list(sh *memoryShard, key string) (*memoryList, error) {
	if _, ok := sh.sets[key]; ok {
		return nil, ErrWrongType
	}

	return sh.lists[key], nil
}

// set returns the sorted set at key, nil when absent, or ErrWrongType.
func (tx *memoryTxn) set(sh *memoryShard, key string) (*scoreSet, error) {
	if _, ok := sh.lists[key]; ok {
		return nil, ErrWrongType
	}

	return sh.sets[key], nil
}

// dropEmptyList removes the key of a list that became empty.
func (tx *memoryTxn) dropEmptyList(sh *memoryShard, key string, l *memoryList) {
	if l.len() > 0 {
		return
	}

	delete(sh.lists, key)
	tx.onRollback(func() { sh.lists[key] = l })
}

func (tx *memoryTxn) push(sh *memoryShard, op Op) (Reply, error) {
	l, err := tx.list(sh, op.Key)
	if err != nil {
		return Reply{}, err
	}

	if len(op.Values) == 0 {
		if l == nil {
			return Reply{}, nil
		}

		return Reply{Count: l.len()}, nil
	}

	if l == nil {
		l = new(memoryList)
		sh.lists[op.Key] = l

		tx.onRollback(func() { delete(sh.lists, op.Key) })
	}

	for _, v := range op.Values {
		if op.Kind == OpPushLeft {
			l.pushLeft(slices.Clone(v))
		} else {
			l.pushRight(slices.Clone(v))
		}
	}

	n := len(op.Values)
	left := op.Kind == OpPushLeft

	tx.onRollback(func() {
		for range n {
			if left {
				l.popLeft()
			} else {
				l.popRight()
			}
		}
	})

	return Reply{Count: l.len()}, nil
}

func (tx *memoryTxn) pop(sh *memoryShard, op Op) (Reply, error) {
	l, err := tx.list(sh, op.Key)
	if err != nil || l == nil {
		return Reply{}, err
	}

	var (
		v  []byte
		ok bool
	)

	if op.Kind == OpPopLeft {
		v, ok = l.popLeft()
		tx.onRollback(func() { l.pushLeft(v) })
	} else {
		v, ok = l.popRight()
		tx.onRollback(func() { l.pushRight(v) })
	}

	tx.dropEmptyList(sh, op.Key, l)

	return Reply{Value: v, Found: ok}, nil
}

func (tx *memoryTxn) trim(sh *memoryShard, op Op) error {
	l, err := tx.list(sh, op.Key)
	if err != nil || l == nil {
		return err
	}

	n := l.len()

	lo, hi, ok := normalizeRange(op.Start, op.Stop, n)
	if !ok {
		lo, hi = 0, 0
	}

	var removedLeft, removedRight [][]byte

	for i := int64(0); i < n-hi; i++ {
		v, _ := l.popRight()
		removedRight = append(removedRight, v)
	}

	for i := int64(0); i < lo; i++ {
		v, _ := l.popLeft()
		removedLeft = append(removedLeft, v)
	}

	tx.onRollback(func() {
		for i := len(removedLeft) - 1; i >= 0; i-- {
			l.pushLeft(removedLeft[i])
		}

		for i := len(removedRight) - 1; i >= 0; i-- {
			l.pushRight(removedRight[i])
		}
	})

	tx.dropEmptyList(sh, op.Key, l)

	return nil
}

// delete removes whatever key holds along with an undo entry.
func (tx *memoryTxn) delete(sh *memoryShard, key string) Reply {
	if l, ok := sh.lists[key]; ok {
		delete(sh.lists, key)
		tx.onRollback(func() { sh.lists[key] = l })

		return Reply{Count: 1}
	}

	if set, ok := sh.sets[key]; ok {
		delete(sh.sets, key)
		tx.onRollback(func() { sh.sets[key] = set })

		return Reply{Count: 1}
	}

	return Reply{}
}

func (tx *memoryTxn) scoreAdd(sh *memoryShard, op Op) (Reply, error) {
	set, err := tx.set(sh, op.Key)
	if err != nil {
		return Reply{}, err
	}

	if len(op.Members) == 0 {
		return Reply{}, nil
	}

	if set == nil {
		set = newScoreSet()
		sh.sets[op.Key] = set

		tx.onRollback(func() { delete(sh.sets, op.Key) })
	}

	var added int64

	for _, m := range op.Members {
		member := string(m.Member)
		score := normalizeScore(m.Score)

		old, existed := set.scores[member]
		if existed {
			set.tree.Delete(member, old)
		} else {
			added++
		}

		set.scores[member] = score
		set.tree.Insert(member, score)

		tx.onRollback(func() {
			set.tree.Delete(member, score)

			if existed {
				set.scores[member] = old
				set.tree.Insert(member, old)
			} else {
				delete(set.scores, member)
			}
		})
	}

	return Reply{Count: added}, nil
}

func (tx *memoryTxn) scoreRemoveRange(sh *memoryShard, op Op) (Reply, error) {
	set, err := tx.set(sh, op.Key)
	if err != nil || set == nil {
		return Reply{}, err
	}

	lo, hi, ok := normalizeRange(op.Start, op.Stop, int64(set.tree.Len()))
	if !ok {
		return Reply{}, nil
	}

	removed := set.tree.Range(int(lo), int(hi))
	for _, m := range removed {
		set.tree.Delete(string(m.Member), m.Score)
		delete(set.scores, string(m.Member))
	}

	tx.onRollback(func() {
		for _, m := range removed {
			set.scores[string(m.Member)] = m.Score
			set.tree.Insert(string(m.Member), m.Score)
		}
	})

	if len(set.scores) == 0 {
		delete(sh.sets, op.Key)
		tx.onRollback(func() { sh.sets[op.Key] = set })
	}

	return Reply{Count: int64(len(removed))}, nil
}

// normalizeScore folds negative zero into zero so both sort and compare alike.
func normalizeScore(score float64) float64 {
	if score == 0 {
		return 0
	}

	return score
}
