// Package pool shares opened stores between callers that use the same
// configuration.
//
// Stores are keyed by the normalized store.Config, so two configurations that
// compare equal share one store and any difference yields a separate one.
// Concurrent first acquisitions of one configuration open the store once.
package pool

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	xxhash "github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/oshokin/xk6-qr/qr/store"
)

// ErrNotAcquired is returned by Release for a configuration with no live references.
var ErrNotAcquired = errors.New("store was not acquired from this pool")

// Factory builds an unopened store for a normalized configuration.
type Factory func(cfg store.Config) (store.Store, error)

type entry struct {
	store store.Store
	refs  int
}

// Pool is a reference-counted set of opened stores. The zero value is not
// usable; call New.
type Pool struct {
	mu      sync.Mutex
	entries map[store.Config]*entry
	opening singleflight.Group
	factory Factory
}

// New returns an empty pool. A nil factory selects store.New.
func New(factory Factory) *Pool {
	if factory == nil {
		factory = store.New
	}

	return &Pool{
		entries: make(map[store.Config]*entry),
		factory: factory,
	}
}

// Acquire returns the opened store for cfg, opening it on first use. Every
// successful Acquire must be paired with a Release of an equal configuration.
func (p *Pool) Acquire(ctx context.Context, cfg store.Config) (store.Store, error) {
	cfg = cfg.Normalized()

	for {
		if s, ok := p.take(cfg); ok {
			return s, nil
		}

		resCh := p.opening.DoChan(flightKey(cfg), func() (any, error) {
			return p.open(cfg)
		})

		select {
		case res := <-resCh:
			if res.Err != nil {
				return nil, res.Err
			}

			// Loop to take the reference under the lock; a Release racing with
			// the open may already have dropped the entry.
		case <-ctx.Done():
			go p.dropUnclaimed(cfg, resCh)

			return nil, ctx.Err()
		}
	}
}

// dropUnclaimed waits for an abandoned open and closes its store if no caller
// took a reference by then. A caller still looping towards take just opens again.
func (p *Pool) dropUnclaimed(cfg store.Config, resCh <-chan singleflight.Result) {
	res := <-resCh
	if res.Err != nil {
		return
	}

	opened, _ := res.Val.(store.Store)

	p.mu.Lock()

	e, ok := p.entries[cfg]
	if !ok || e.store != opened || e.refs > 0 {
		p.mu.Unlock()

		return
	}

	delete(p.entries, cfg)
	p.mu.Unlock()

	_ = e.store.Close()
}

func (p *Pool) take(cfg store.Config) (store.Store, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[cfg]
	if !ok {
		return nil, false
	}

	e.refs++

	return e.store, true
}

func (p *Pool) open(cfg store.Config) (store.Store, error) {
	p.mu.Lock()
	if e, ok := p.entries[cfg]; ok {
		p.mu.Unlock()

		return e.store, nil
	}
	p.mu.Unlock()

	s, err := p.factory(cfg)
	if err != nil {
		return nil, err
	}

	if err = s.Open(); err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	p.mu.Lock()
	p.entries[cfg] = &entry{store: s}
	p.mu.Unlock()

	return s, nil
}

// Release drops one reference to the store for cfg and closes it when none remain.
func (p *Pool) Release(cfg store.Config) error {
	cfg = cfg.Normalized()

	p.mu.Lock()

	e, ok := p.entries[cfg]
	if !ok || e.refs == 0 {
		p.mu.Unlock()

		return fmt.Errorf("%w: backend=%q path=%q", ErrNotAcquired, cfg.Backend, cfg.Path)
	}

	e.refs--
	if e.refs > 0 {
		p.mu.Unlock()

		return nil
	}

	delete(p.entries, cfg)
	p.mu.Unlock()

	return e.store.Close()
}

// Len returns the number of open stores.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}

// Close closes every store regardless of outstanding references.
func (p *Pool) Close() error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[store.Config]*entry)
	p.mu.Unlock()

	var errs []error

	for _, e := range entries {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// flightKey hashes the fields of cfg that select and tune a store. Credentials
// are left out; configs that collide only share a flight, and Acquire still
// takes its entry by the full config.
func flightKey(cfg store.Config) string {
	var buf []byte

	for _, s := range []string{cfg.Backend, cfg.Path, cfg.Disk.FreelistType, cfg.Redis.Addr} {
		buf = append(buf, s...)
		buf = append(buf, 0)
	}

	for _, n := range []int64{
		int64(cfg.Memory.ShardCount),
		int64(cfg.Disk.Timeout),
		int64(cfg.Disk.InitialMmapSize),
		cfg.Pebble.CacheSize,
		int64(cfg.Pebble.MemTableSize), //nolint:gosec // only hashed.
		int64(cfg.Pebble.MaxOpenFiles),
		int64(cfg.Redis.DB),
		int64(cfg.Redis.DialTimeout),
		int64(cfg.Redis.PoolSize),
	} {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(n)) //nolint:gosec // only hashed.
	}

	for _, flag := range []bool{cfg.Disk.NoSync, cfg.Disk.NoGrowSync, cfg.Disk.NoFreelistSync, cfg.Pebble.NoSync} {
		if flag {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	return strconv.FormatUint(xxhash.Sum64(buf), 16)
}
