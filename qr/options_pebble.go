package qr

import (
	"fmt"

	"github.com/oshokin/xk6-qr/qr/store"
)

// PebbleOptions exposes pebble tuning knobs for the "pebble" backend.
// Sizes accept a number of bytes or a string such as "64MB".
type PebbleOptions struct {
	// NoSync commits without waiting for the WAL to reach disk.
	NoSync *bool `js:"noSync"`
	// CacheSize is the block cache size.
	CacheSize any `js:"cacheSize"`
	// MemTableSize is the size of one memtable.
	MemTableSize any `js:"memTableSize"`
	// MaxOpenFiles bounds the number of open sstables.
	MaxOpenFiles int `js:"maxOpenFiles"`
}

func (po *PebbleOptions) toPebbleConfig() (store.PebbleConfig, error) {
	var cfg store.PebbleConfig

	if po == nil {
		return cfg, nil
	}

	cfg.NoSync = boolValue(po.NoSync)
	cfg.MaxOpenFiles = po.MaxOpenFiles

	if po.CacheSize != nil {
		size, err := parseIntSize(po.CacheSize)
		if err != nil {
			return cfg, fmt.Errorf("%w: pebble.cacheSize: %w", ErrOptionsInvalid, err)
		}

		cfg.CacheSize = size
	}

	if po.MemTableSize != nil {
		size, err := parseSizeValue(po.MemTableSize)
		if err != nil {
			return cfg, fmt.Errorf("%w: pebble.memTableSize: %w", ErrOptionsInvalid, err)
		}

		cfg.MemTableSize = size
	}

	if cfg.MaxOpenFiles < 0 {
		return cfg, fmt.Errorf("%w: pebble.maxOpenFiles must be non-negative", ErrOptionsInvalid)
	}

	return cfg, nil
}
