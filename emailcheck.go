/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

// Package emailcheck decides whether an email address is acceptable: well
// formed, not a role mailbox if those are rejected, and backed by a domain
// that passes the configured policy (whitelist, blacklist, custom checker,
// reputation lists and MX/A records).
//
// The package-level functions use a process-wide Engine built from
// DefaultSettings. Use Configure or Reset to change it, or build isolated
// engines with New.
package emailcheck

import (
	"context"
	"errors"
	"time"

	"github.com/Zuplu/emailcheck/cache"
)

var ErrCacheDisabled = errors.New("cache is disabled")

func Valid(email string, opts ...Option) bool {
	return Default().Valid(context.Background(), email, opts...)
}

func FormatValid(email string) bool {
	return Default().FormatValid(email)
}

func DomainValid(email string, opts ...Option) bool {
	return Default().DomainValid(context.Background(), email, opts...)
}

func Normalize(email string) string {
	return Default().Normalize(email)
}

func ClearCache() {
	Default().ClearCache(context.Background())
}

func ClearCacheForDomain(domain string) {
	Default().ClearCacheForDomain(context.Background(), domain)
}

// WithCache memoizes compute in the default engine's cache. A ttl <= 0
// uses the configured cache TTL.
func WithCache[T any](key string, ttl time.Duration, force bool, compute func() (T, error)) (T, error) {
	e := Default()
	if e.cache == nil {
		var zero T
		return zero, ErrCacheDisabled
	}
	if ttl <= 0 {
		ttl = e.settings.Cache.TTL
	}
	return cache.Fetch(context.Background(), e.cache, key, ttl, force, compute)
}
