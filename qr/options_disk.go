package qr

import (
	"fmt"
	"math"
	"strings"

	"github.com/oshokin/xk6-qr/qr/store"
)

// DiskOptions exposes a curated subset of bbolt.Options at the k6 JS layer.
//
// Users can tune the trade-offs that matter for queue workloads:
//   - lock timeout,
//   - durability vs throughput,
//   - freelist behavior for large files.
//
// Low-level OS-specific knobs stay internal.
type DiskOptions struct {
	// Timeout controls how long bbolt waits to acquire the file lock.
	//
	// When zero, bbolt waits indefinitely. A finite timeout makes a second
	// process holding the file fail fast instead of hanging the test.
	//
	// Accepted types:
	//   - number: milliseconds.
	//   - string: Go duration, e.g. "1s", "500ms", "1.5s".
	Timeout any `js:"timeout"`

	// NoSync skips fsync on each commit. Much faster pushes and pops, but
	// recent batches can be lost if the machine crashes.
	NoSync *bool `js:"noSync"`

	// NoGrowSync skips the fsync that normally happens when the file grows.
	NoGrowSync *bool `js:"noGrowSync"`

	// NoFreelistSync keeps the freelist out of the file and rebuilds it on open.
	NoFreelistSync *bool `js:"noFreelistSync"`

	// FreelistType selects the internal freelist representation:
	// "" or "array" (bbolt default), or "map" (faster on large, fragmented files).
	FreelistType *string `js:"freelistType"`

	// InitialMmapSize is the initial mmap size in bytes.
	//
	// Accepted types:
	//   - number: bytes.
	//   - string: size, e.g. "64MB", "1GiB".
	InitialMmapSize any `js:"initialMmapSize"`
}

// toDiskConfig converts DiskOptions into a store-level DiskConfig with parsed values.
func (do *DiskOptions) toDiskConfig() (store.DiskConfig, error) {
	var cfg store.DiskConfig

	if do == nil {
		return cfg, nil
	}

	if do.Timeout != nil {
		duration, err := parseDurationValue(do.Timeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: disk.timeout: %w", ErrOptionsInvalid, err)
		}

		cfg.Timeout = duration
	}

	cfg.NoSync = boolValue(do.NoSync)
	cfg.NoGrowSync = boolValue(do.NoGrowSync)
	cfg.NoFreelistSync = boolValue(do.NoFreelistSync)

	if do.FreelistType != nil {
		freelist := strings.ToLower(strings.TrimSpace(*do.FreelistType))

		switch freelist {
		case "", "array", "map":
			cfg.FreelistType = freelist
		default:
			return cfg, fmt.Errorf("%w: disk.freelistType: %q", ErrOptionsInvalid, *do.FreelistType)
		}
	}

	if do.InitialMmapSize != nil {
		size, err := parseSizeValue(do.InitialMmapSize)
		if err != nil {
			return cfg, fmt.Errorf("%w: disk.initialMmapSize: %w", ErrOptionsInvalid, err)
		}

		if size > math.MaxInt {
			return cfg, fmt.Errorf("%w: disk.initialMmapSize too large: %d", ErrOptionsInvalid, size)
		}

		cfg.InitialMmapSize = int(size)
	}

	return cfg, nil
}

func boolValue(p *bool) bool {
	return p != nil && *p
}
