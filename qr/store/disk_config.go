package store

import (
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DiskConfig holds bbolt-specific tuning knobs. Zero values keep bbolt's
// defaults. Every field is a plain value so the config stays comparable.
type DiskConfig struct {
	// Timeout is the amount of time to wait to obtain a file lock.
	// When set to zero it will wait indefinitely.
	Timeout time.Duration
	// NoSync skips fsync after each commit. Faster, but a crash may lose
	// the most recent batches.
	NoSync bool
	// NoGrowSync sets the DB.NoGrowSync flag before memory mapping the file.
	NoGrowSync bool
	// NoFreelistSync disables syncing freelist to disk. This improves the database write performance
	// under normal operation, but requires a full database re-sync during recovery.
	NoFreelistSync bool
	// FreelistType sets the backend freelist type: "array" (default) or "map".
	FreelistType string
	// InitialMmapSize is the initial mmap size of the database in bytes.
	InitialMmapSize int
}

// validate validates the DiskConfig.
func (cfg DiskConfig) validate() error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative", ErrConfigInvalid)
	}

	if cfg.InitialMmapSize < 0 {
		return fmt.Errorf("%w: initialMmapSize must be non-negative", ErrConfigInvalid)
	}

	switch strings.ToLower(cfg.FreelistType) {
	case "", "array", "map":
		return nil
	default:
		return fmt.Errorf("%w: freelistType: %q", ErrConfigInvalid, cfg.FreelistType)
	}
}

// buildBBoltOptions builds bolt.Options from DiskConfig.
func buildBBoltOptions(cfg DiskConfig) (*bolt.Options, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Start from bbolt's defaults to avoid changing behavior when new fields are added.
	opts := *bolt.DefaultOptions

	opts.Timeout = cfg.Timeout
	opts.NoSync = cfg.NoSync
	opts.NoGrowSync = cfg.NoGrowSync
	opts.NoFreelistSync = cfg.NoFreelistSync
	opts.InitialMmapSize = cfg.InitialMmapSize

	if strings.EqualFold(cfg.FreelistType, "map") {
		opts.FreelistType = bolt.FreelistMapType
	} else {
		opts.FreelistType = bolt.FreelistArrayType
	}

	return &opts, nil
}
