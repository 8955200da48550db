package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultDiskStorePath is the default filesystem path to the BoltDB file.
	DefaultDiskStorePath = ".k6.qr"

	// DefaultCollectionsBucket is the BoltDB bucket holding every collection.
	DefaultCollectionsBucket = "qr"
)

// DiskStore is a persistent list and sorted-set store backed by BoltDB.
//
// Concurrency:
//   - All exported methods are safe for concurrent use.
//   - Every mutating batch is one Bolt read-write transaction, so it commits
//     entirely or not at all. Read-only batches run in a read transaction.
type DiskStore struct {
	path   string
	cfg    DiskConfig
	handle *bolt.DB
	bucket []byte
	notify *notifier

	lock     sync.Mutex // Serializes open/close transitions
	refCount int64
}

// NewDiskStore constructs a DiskStore for the bbolt file at path.
// When path is empty, DefaultDiskStorePath is used.
func NewDiskStore(path string, cfg DiskConfig) *DiskStore {
	return &DiskStore{
		path:   path,
		cfg:    cfg,
		bucket: []byte(DefaultCollectionsBucket),
		notify: newNotifier(),
	}
}

// Path returns the resolved database path once opened, or the configured one.
func (s *DiskStore) Path() string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.path
}

// Open opens the bbolt file on the first reference and bumps the refcount.
func (s *DiskStore) Open() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.handle != nil {
		s.refCount++

		return nil
	}

	path, err := ResolveDiskPath(s.path, DefaultDiskStorePath, false)
	if err != nil {
		return err
	}

	if err := ensureParentDir(path); err != nil {
		return err
	}

	opts, err := buildBBoltOptions(s.cfg)
	if err != nil {
		return err
	}

	handle, err := bolt.Open(path, 0o600, opts)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDiskStoreOpenFailed, path, err)
	}

	err = handle.Update(func(tx *bolt.Tx) error {
		if _, bucketErr := tx.CreateBucketIfNotExists(s.bucket); bucketErr != nil {
			return fmt.Errorf("%w: %q: %w", ErrBoltDBBucketCreateFailed, s.bucket, bucketErr)
		}

		return nil
	})
	if err != nil {
		_ = handle.Close()

		return err
	}

	s.path = path
	s.handle = handle
	s.refCount = 1
	s.notify.reset()

	return nil
}

// Close drops one reference and closes the file with the last one.
func (s *DiskStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.handle == nil {
		return nil
	}

	s.refCount--
	if s.refCount > 0 {
		return nil
	}

	s.notify.shutdown()

	err := s.handle.Close()
	s.handle = nil
	s.refCount = 0

	if err != nil {
		return fmt.Errorf("%w: close: %w", ErrStoreWriteFailed, err)
	}

	return nil
}

func (s *DiskStore) db() (*bolt.DB, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.handle == nil {
		return nil, ErrClosed
	}

	return s.handle, nil
}

// Exec runs batch inside one Bolt transaction.
func (s *DiskStore) Exec(ctx context.Context, batch *Batch) ([]Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := batch.validate(); err != nil {
		return nil, err
	}

	handle, err := s.db()
	if err != nil {
		return nil, err
	}

	var replies []Reply

	run := func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket == nil {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
		}

		var execErr error

		replies, execErr = execOrdered(boltTxn{bucket: bucket}, batch)

		return execErr
	}

	if batchMutates(batch) {
		err = handle.Update(run)
	} else {
		err = handle.View(run)
	}

	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return nil, ErrClosed
		}

		return nil, err
	}

	s.notify.notify(pushedKeys(batch)...)

	return replies, nil
}

// BlockingPop pops from one side of the list at key, waiting for pushes made
// through this store.
func (s *DiskStore) BlockingPop(
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

// batchMutates reports whether any operation of batch may write.
func batchMutates(batch *Batch) bool {
	return slices.ContainsFunc(batch.Ops(), func(op Op) bool { return op.Kind.mutates() })
}

// boltTxn adapts a Bolt bucket inside a transaction to kvTxn.
type boltTxn struct {
	bucket *bolt.Bucket
}

func (t boltTxn) get(key []byte) ([]byte, error) {
	v := t.bucket.Get(key)
	if v == nil {
		return nil, nil
	}

	// Bolt values are only valid for the life of the transaction.
	return append([]byte{}, v...), nil
}

func (t boltTxn) put(key, value []byte) error {
	return t.bucket.Put(key, value)
}

func (t boltTxn) del(key []byte) error {
	return t.bucket.Delete(key)
}

func (t boltTxn) scan(prefix []byte, fn func(key, value []byte) bool) error {
	c := t.bucket.Cursor()

	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if !fn(k, v) {
			return nil
		}
	}

	return nil
}
