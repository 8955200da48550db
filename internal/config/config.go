// Package config loads the YAML file shared by the qrd and qrtail binaries.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/oshokin/xk6-qr/internal/gateway"
	"github.com/oshokin/xk6-qr/qr/store"
)

const (
	// DefaultListenAddr is used when the file has no listen address.
	DefaultListenAddr = ":8080"
	// DefaultMaxWait bounds blocking pops requested over HTTP.
	DefaultMaxWait = 30 * time.Second
)

var (
	// ErrReadFailed wraps failures to read the config file.
	ErrReadFailed = errors.New("read config failed")
	// ErrParseFailed wraps YAML syntax and type errors.
	ErrParseFailed = errors.New("parse config failed")
	// ErrInvalid is returned when the file parses but its values are unusable.
	ErrInvalid = errors.New("invalid config")
)

// File is the on-disk layout:
//
//	listen: ":8080"
//	log_level: info
//	max_wait: 30s
//	store:
//	  backend: pebble
//	  path: ./data
//	  pebble:
//	    nosync: true
//	collections:
//	  - key: jobs
//	    kind: queue
//	  - key: recent
//	    kind: capped
//	    size: 100
//
// Store fields use the lowercased Go field names of store.Config.
type File struct {
	Listen      string               `yaml:"listen"`
	LogLevel    string               `yaml:"log_level"`
	MaxWait     time.Duration        `yaml:"max_wait"`
	Store       store.Config         `yaml:"store"`
	Collections []gateway.Collection `yaml:"collections"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path.
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*File, error) {
	var f File

	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}

	if f.Listen == "" {
		f.Listen = DefaultListenAddr
	}

	if f.MaxWait <= 0 {
		f.MaxWait = DefaultMaxWait
	}

	f.Store = f.Store.Normalized()

	if _, err := f.Level(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(f.Collections))

	for i, c := range f.Collections {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: collections[%d]: %w", ErrInvalid, i, err)
		}

		if _, dup := seen[c.Key]; dup {
			return nil, fmt.Errorf("%w: collections[%d]: duplicate key %q", ErrInvalid, i, c.Key)
		}

		seen[c.Key] = struct{}{}
	}

	return &f, nil
}

// Level parses LogLevel; empty means info.
func (f *File) Level() (slog.Level, error) {
	var level slog.Level

	if strings.TrimSpace(f.LogLevel) == "" {
		return slog.LevelInfo, nil
	}

	if err := level.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return level, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}

	return level, nil
}

// Collection returns the declared collection named key.
func (f *File) Collection(key string) (gateway.Collection, bool) {
	for _, c := range f.Collections {
		if c.Key == key {
			return c, true
		}
	}

	return gateway.Collection{}, false
}
