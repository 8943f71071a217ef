// Package cache provides the key/value store that sits in front of the product
// catalog, holds the upstream access token, and records processed webhook
// events.
//
// Every backend implements Store. Values are opaque strings and every write
// carries a TTL; there is no eviction beyond expiry. SetNX is the only
// primitive that must be atomic across processes, because webhook
// deduplication depends on exactly one caller winning it.
//
// Backends:
//
//   - memory:   process-local map (tests, single-instance dev)
//   - redis:    github.com/redis/go-redis/v9
//   - valkey:   github.com/valkey-io/valkey-go
//   - dynamodb: aws-sdk-go-v2, conditional PutItem
//   - sql:      the catalog database's cache_entries table
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-cache/internal/config"
)

// Store is a TTL key/value store.
type Store interface {
	// Get returns the value for key. A missing or expired key yields ok=false
	// and a nil error.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes value under key, replacing any existing value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrInvalidTTL is returned by writes with a non-positive TTL.
var ErrInvalidTTL = errors.New("cache: ttl must be positive")

// Open builds the Store selected by cfg.Driver. db is only used by the sql
// backend and may be nil otherwise. The returned store is instrumented with
// Prometheus metrics.
func Open(ctx context.Context, cfg config.CacheConfig, db *gorm.DB) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.CacheMemory, "":
		s = NewMemory()
	case config.CacheRedis:
		s, err = DialRedis(ctx, cfg.Addr, cfg.Password, cfg.DB)
	case config.CacheValkey:
		s, err = DialValkey(ctx, cfg.Addr, cfg.Password, cfg.DB)
	case config.CacheDynamoDB:
		s, err = DialDynamoDB(ctx, cfg.Region, cfg.Addr, cfg.Table)
	case config.CacheSQL:
		if db == nil {
			return nil, errors.New("cache: sql backend requires a database handle")
		}
		s = NewSQL(db)
	default:
		return nil, fmt.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	name := cfg.Driver
	if name == "" {
		name = config.CacheMemory
	}
	return Instrument(s, name), nil
}

func checkTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// Sweeper is implemented by backends whose expired entries are only removed
// by a background job.
type Sweeper interface {
	RunSweeper(ctx context.Context, interval time.Duration)
}

// AsSweeper returns the Sweeper behind s, looking through decorators.
func AsSweeper(s Store) (Sweeper, bool) {
	for {
		if sw, ok := s.(Sweeper); ok {
			return sw, true
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			return nil, false
		}
		s = u.Unwrap()
	}
}
