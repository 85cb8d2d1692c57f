/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

// Package cache holds the key/value stores that memoize DNS and DNSBL
// answers. Values are plain scalars (bool, string, numbers) or nil; a cached nil or
// false is a hit, not a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	CACHE_DEFAULT_TTL = 3600 * time.Second

	KIND_MEMORY = "memory"
	KIND_REDIS  = "redis"
)

var (
	ErrUnknownAdapter = errors.New("unknown cache adapter")
	ErrInvalidAdapter = errors.New("invalid cache adapter")
)

// Cache is the contract every backend implements. A ttl <= 0 stores the
// value without expiry. Backends must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	Exists(ctx context.Context, key string) bool
}

// Decoder is implemented by backends that keep values encoded. GetInto
// decodes the value under key into dst, which is a pointer, and reports a
// miss when the key is absent or does not decode into dst's type.
type Decoder interface {
	GetInto(ctx context.Context, key string, dst any) bool
}

// Fetch returns the value cached under key, or runs compute once, stores
// its result and returns it. With force set the cached value is ignored.
// A compute error is returned as-is and nothing is stored.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, force bool, compute func() (T, error)) (T, error) {
	if c == nil {
		return compute()
	}
	if !force {
		if d, ok := c.(Decoder); ok {
			var typed T
			if d.GetInto(ctx, key, &typed) {
				return typed, nil
			}
		} else if v, ok := c.Get(ctx, key); ok {
			if v == nil {
				var zero T
				return zero, nil
			}
			if typed, ok := v.(T); ok {
				return typed, nil
			}
			// stored by someone else under a different type, recompute
		}
	}
	value, err := compute()
	if err != nil {
		return value, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// AdapterOptions carries what the built-in factories need.
type AdapterOptions struct {
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
}

type Factory func(opts AdapterOptions) (Cache, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		KIND_MEMORY: func(AdapterOptions) (Cache, error) {
			return NewMemoryCache(), nil
		},
		KIND_REDIS: func(opts AdapterOptions) (Cache, error) {
			return NewRedisCache(opts.RedisAddress, opts.RedisPassword, opts.RedisDB, opts.DialTimeout), nil
		},
	}
)

// Register makes a custom backend selectable by kind.
func Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidAdapter)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidAdapter, kind)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
	return nil
}

// New builds the backend registered under kind.
func New(kind string, opts AdapterOptions) (Cache, error) {
	registryMu.RLock()
	factory, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownAdapter, kind, Kinds())
	}
	c, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("cache %q: %w", kind, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", ErrInvalidAdapter, kind)
	}
	return c, nil
}

func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
