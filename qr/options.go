package qr

import (
	"fmt"
	"strings"

	"github.com/grafana/sobek"
	"go.k6.io/k6/js/common"
	"go.k6.io/k6/js/modules"

	"github.com/oshokin/xk6-qr/qr/store"
)

const (
	// BackendMemory is an in-memory, process-local store (fast, ephemeral).
	BackendMemory = store.BackendMemory
	// BackendDisk is the persistent store backed by a bbolt file.
	BackendDisk = store.BackendDisk
	// BackendPebble is the persistent store backed by a pebble directory.
	BackendPebble = store.BackendPebble
	// BackendRedis is a Redis server shared across processes.
	BackendRedis = store.BackendRedis

	// SerializationJSON encodes/decodes values using JSON.
	SerializationJSON = "json"
	// SerializationString encodes string values directly as bytes (and vice versa).
	SerializationString = "string"

	// CompressionNone stores encoded values as they are.
	CompressionNone = "none"
	// CompressionSnappy compresses encoded values with snappy.
	CompressionSnappy = "snappy"

	// DefaultBackend is used when the user does not specify a backend.
	DefaultBackend = BackendMemory
	// DefaultSerialization is used when the user does not specify a serialization format.
	DefaultSerialization = SerializationJSON
)

// Options controls which store and codec openQr() binds a client to.
// Clients opened with equal options share one store across all VUs.
type Options struct {
	// Backend selects the storage engine: "memory", "disk", "pebble" or "redis".
	Backend string `js:"backend"`

	// Path points to the bbolt file (disk) or the pebble directory (pebble).
	// When empty the default path is used. Ignored by memory and redis.
	Path string `js:"path"`

	// Serialization selects how values are encoded: "json" or "string".
	Serialization string `js:"serialization"`

	// Compression optionally wraps the serialization: "none" or "snappy".
	Compression string `js:"compression"`

	// MemoryOptions contains memory-backend specific configuration.
	MemoryOptions *MemoryOptions `js:"memory"`

	// DiskOptions contains bbolt-specific configuration for the "disk" backend.
	DiskOptions *DiskOptions `js:"disk"`

	// PebbleOptions contains configuration for the "pebble" backend.
	PebbleOptions *PebbleOptions `js:"pebble"`

	// RedisOptions contains connection settings for the "redis" backend.
	RedisOptions *RedisOptions `js:"redis"`
}

// NewOptionsFrom converts a Sobek (JS) value into an Options instance, applying defaults
// and validating user input.
func NewOptionsFrom(vu modules.VU, options sobek.Value) (Options, error) {
	opts := Options{
		Backend:       DefaultBackend,
		Serialization: DefaultSerialization,
		Compression:   CompressionNone,
	}

	if common.IsNullish(options) {
		return opts, nil
	}

	if err := vu.Runtime().ExportTo(options, &opts); err != nil {
		return opts, fmt.Errorf("%w: %w", ErrOptionsInvalid, err)
	}

	return opts.normalize()
}

// normalize lowercases the names, applies defaults and validates them.
func (o Options) normalize() (Options, error) {
	o.Backend = lowerOr(o.Backend, DefaultBackend)
	o.Serialization = lowerOr(o.Serialization, DefaultSerialization)
	o.Compression = lowerOr(o.Compression, CompressionNone)

	switch o.Backend {
	case BackendMemory, BackendRedis:
	case BackendDisk:
		path, err := store.ResolveDiskPath(o.Path, store.DefaultDiskStorePath, false)
		if err != nil {
			return o, err
		}

		o.Path = path
	case BackendPebble:
		path, err := store.ResolveDiskPath(o.Path, store.DefaultPebbleStorePath, true)
		if err != nil {
			return o, err
		}

		o.Path = path
	default:
		return o, fmt.Errorf(
			"%w: %q; valid values are: %q, %q, %q, %q",
			store.ErrUnknownBackend, o.Backend, BackendMemory, BackendDisk, BackendPebble, BackendRedis,
		)
	}

	if o.Serialization != SerializationJSON && o.Serialization != SerializationString {
		return o, fmt.Errorf(
			"%w: %q; valid values are: %q, %q",
			ErrUnknownSerialization, o.Serialization, SerializationJSON, SerializationString,
		)
	}

	if o.Compression != CompressionNone && o.Compression != CompressionSnappy {
		return o, fmt.Errorf(
			"%w: %q; valid values are: %q, %q",
			ErrUnknownCompression, o.Compression, CompressionNone, CompressionSnappy,
		)
	}

	return o, nil
}

// ToStoreConfig converts the options into the comparable store.Config that
// keys the shared store. Settings of other backends are ignored so they
// cannot split one store into two.
func (o Options) ToStoreConfig() (store.Config, error) {
	cfg := store.Config{Backend: o.Backend}

	var err error

	switch o.Backend {
	case BackendMemory:
		cfg.Memory, err = o.MemoryOptions.toMemoryConfig()
	case BackendDisk:
		cfg.Path = o.Path
		cfg.Disk, err = o.DiskOptions.toDiskConfig()
	case BackendPebble:
		cfg.Path = o.Path
		cfg.Pebble, err = o.PebbleOptions.toPebbleConfig()
	case BackendRedis:
		cfg.Redis, err = o.RedisOptions.toRedisConfig()
	}

	if err != nil {
		return store.Config{}, err
	}

	return cfg.Normalized(), nil
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}

	return value
}
