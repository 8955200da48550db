package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
)

// DefaultPebbleStorePath is the default pebble directory.
const DefaultPebbleStorePath = ".k6.qr.pebble"

// PebbleConfig holds pebble-specific tuning knobs. Zero values keep pebble's defaults.
type PebbleConfig struct {
	// NoSync commits batches without waiting for the WAL to reach disk.
	NoSync bool
	// CacheSize is the block cache size in bytes.
	CacheSize int64
	// MemTableSize is the size of one memtable in bytes.
	MemTableSize uint64
	// MaxOpenFiles bounds the number of open sstable files.
	MaxOpenFiles int
}

func (cfg PebbleConfig) validate() error {
	if cfg.CacheSize < 0 {
		return fmt.Errorf("%w: cacheSize must be non-negative", ErrConfigInvalid)
	}

	if cfg.MaxOpenFiles < 0 {
		return fmt.Errorf("%w: maxOpenFiles must be non-negative", ErrConfigInvalid)
	}

	return nil
}

func (cfg PebbleConfig) options() *pebble.Options {
	opts := &pebble.Options{}

	if cfg.CacheSize > 0 {
		opts.Cache = pebble.NewCache(cfg.CacheSize)
	}

	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}

	if cfg.MaxOpenFiles > 0 {
		opts.MaxOpenFiles = cfg.MaxOpenFiles
	}

	return opts
}

func (cfg PebbleConfig) writeOptions() *pebble.WriteOptions {
	if cfg.NoSync {
		return pebble.NoSync
	}

	return pebble.Sync
}

// PebbleStore is a persistent list and sorted-set store backed by a pebble
// directory. Batches run one at a time on an indexed pebble batch, which gives
// read-your-writes inside the batch and a single atomic commit at the end.
type PebbleStore struct {
	dir    string
	cfg    PebbleConfig
	db     *pebble.DB
	cache  *pebble.Cache
	notify *notifier

	lock     sync.Mutex // Serializes open/close transitions
	refCount int64

	writer sync.Mutex // Serializes batches
}

// NewPebbleStore constructs a PebbleStore for the directory dir.
func NewPebbleStore(dir string, cfg PebbleConfig) *PebbleStore {
	return &PebbleStore{
		dir:    dir,
		cfg:    cfg,
		notify: newNotifier(),
	}
}

// Open opens the pebble directory on the first reference and bumps the refcount.
func (s *PebbleStore) Open() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.db != nil {
		s.refCount++

		return nil
	}

	if err := s.cfg.validate(); err != nil {
		return err
	}

	dir, err := ResolveDiskPath(s.dir, DefaultPebbleStorePath, true)
	if err != nil {
		return err
	}

	opts := s.cfg.options()

	db, err := pebble.Open(dir, opts)
	if err != nil {
		if opts.Cache != nil {
			opts.Cache.Unref()
		}

		return fmt.Errorf("%w: %q: %w", ErrPebbleStoreOpenFailed, dir, err)
	}

	s.dir = dir
	s.db = db
	s.cache = opts.Cache
	s.refCount = 1
	s.notify.reset()

	return nil
}

// Close drops one reference and closes the directory with the last one.
func (s *PebbleStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.db == nil {
		return nil
	}

	s.refCount--
	if s.refCount > 0 {
		return nil
	}

	s.notify.shutdown()

	s.writer.Lock()
	err := s.db.Close()
	s.db = nil
	s.writer.Unlock()

	if s.cache != nil {
		s.cache.Unref()
		s.cache = nil
	}

	s.refCount = 0

	if err != nil {
		return fmt.Errorf("%w: close: %w", ErrStoreWriteFailed, err)
	}

	return nil
}

// Exec runs batch on one indexed pebble batch and commits it atomically.
func (s *PebbleStore) Exec(ctx context.Context, batch *Batch) ([]Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := batch.validate(); err != nil {
		return nil, err
	}

	s.writer.Lock()
	defer s.writer.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}

	b := s.db.NewIndexedBatch()
	defer b.Close()

	replies, err := execOrdered(pebbleTxn{batch: b}, batch)
	if err != nil {
		return nil, err
	}

	if !b.Empty() {
		if err := b.Commit(s.cfg.writeOptions()); err != nil {
			return nil, fmt.Errorf("%w: commit: %w", ErrStoreWriteFailed, err)
		}
	}

	s.notify.notify(pushedKeys(batch)...)

	return replies, nil
}

// BlockingPop pops from one side of the list at key, waiting for pushes made
// through this store.
func (s *PebbleStore) BlockingPop(
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

// pebbleTxn adapts an indexed pebble batch to kvTxn.
type pebbleTxn struct {
	batch *pebble.Batch
}

func (t pebbleTxn) get(key []byte) ([]byte, error) {
	v, closer, err := t.batch.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}
	defer closer.Close()

	return append([]byte{}, v...), nil
}

func (t pebbleTxn) put(key, value []byte) error {
	return t.batch.Set(key, value, nil)
}

func (t pebbleTxn) del(key []byte) error {
	return t.batch.Delete(key, nil)
}

func (t pebbleTxn) scan(prefix []byte, fn func(key, value []byte) bool) error {
	iter, err := t.batch.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}

	for iter.First(); iter.Valid(); iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}

	return errors.Join(iter.Error(), iter.Close())
}

// prefixUpperBound computes the smallest key greater than every key starting
// with prefix by incrementing the last byte with carry propagation.
// Returns nil when no such bound exists.
func prefixUpperBound(prefix []byte) []byte {
	b := append([]byte{}, prefix...)

	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == 0xFF {
			continue
		}

		b[i]++

		return b[:i+1]
	}

	return nil
}
