package qr

import (
	"fmt"
	"strings"

	"github.com/oshokin/xk6-qr/qr/store"
)

// RedisOptions holds the connection settings for the "redis" backend.
type RedisOptions struct {
	// Addr is host:port; defaults to store.DefaultRedisAddr.
	Addr     string `js:"addr"`
	Username string `js:"username"`
	Password string `js:"password"`
	DB       int    `js:"db"`
	// DialTimeout accepts milliseconds or a duration string.
	DialTimeout any `js:"dialTimeout"`
	PoolSize    int `js:"poolSize"`
}

func (ro *RedisOptions) toRedisConfig() (store.RedisConfig, error) {
	var cfg store.RedisConfig

	if ro == nil {
		return cfg, nil
	}

	cfg = store.RedisConfig{
		Addr:     strings.TrimSpace(ro.Addr),
		Username: ro.Username,
		Password: ro.Password,
		DB:       ro.DB,
		PoolSize: ro.PoolSize,
	}

	if ro.DialTimeout != nil {
		timeout, err := parseDurationValue(ro.DialTimeout)
		if err != nil {
			return cfg, fmt.Errorf("%w: redis.dialTimeout: %w", ErrOptionsInvalid, err)
		}

		cfg.DialTimeout = timeout
	}

	if cfg.DB < 0 || cfg.PoolSize < 0 {
		return cfg, fmt.Errorf("%w: redis.db and redis.poolSize must be non-negative", ErrOptionsInvalid)
	}

	return cfg, nil
}
