package store

import (
	"fmt"
	"strings"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config describes one store instance. It is comparable, so two configs
// select the same store exactly when they are equal with ==.
type Config struct {
	// Backend is one of the Backend* names. Empty selects BackendMemory.
	Backend string
	// Path is the bbolt file (disk) or the pebble directory (pebble).
	Path string

	Memory MemoryConfig
	Disk   DiskConfig
	Pebble PebbleConfig
	Redis  RedisConfig
}

// Normalized returns cfg with defaults applied to the fields that select
// the backing resource, so equivalent configs compare equal.
func (cfg Config) Normalized() Config {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}

	cfg.Path = strings.TrimSpace(cfg.Path)

	switch cfg.Backend {
	case BackendDisk:
		if cfg.Path == "" {
			cfg.Path = DefaultDiskStorePath
		}
	case BackendPebble:
		if cfg.Path == "" {
			cfg.Path = DefaultPebbleStorePath
		}
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			cfg.Redis.Addr = DefaultRedisAddr
		}
	}

	return cfg
}

// New builds the store described by cfg without opening it.
func New(cfg Config) (Store, error) {
	cfg = cfg.Normalized()

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(&cfg.Memory), nil
	case BackendDisk:
		if err := cfg.Disk.validate(); err != nil {
			return nil, err
		}

		return NewDiskStore(cfg.Path, cfg.Disk), nil
	case BackendPebble:
		if err := cfg.Pebble.validate(); err != nil {
			return nil, err
		}

		return NewPebbleStore(cfg.Path, cfg.Pebble), nil
	case BackendRedis:
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
