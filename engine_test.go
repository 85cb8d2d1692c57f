/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zuplu/emailcheck/cache"
	"github.com/Zuplu/emailcheck/internal/utils/log"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
)

func newTestEngine(t *testing.T, setup func(*Settings)) *Engine {
	t.Helper()
	s := DefaultSettings()
	s.Dns.Address = startDNS(t, testZones)
	s.Defaults.Timeout = time.Second
	if setup != nil {
		setup(&s)
	}
	e, err := New(s)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return e
}

func TestEngineValid(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		email    string
		opts     []Option
		expected bool
	}{
		{"user@example.com", nil, true},
		{"user@nomx.example", nil, false},
		{"user@nomx.example", []Option{WithCheckMX(false), WithCheckA(true)}, true},
		{"user@missing.example", nil, false},
		{"user@broken.example", nil, false},
		{"user@missing.example", []Option{WithValidateDomain(false)}, true},
		{"", nil, false},
	}
	for _, tc := range tests {
		if got := e.Valid(ctx, tc.email, tc.opts...); got != tc.expected {
			t.Errorf("Valid(%q) = %v, want %v", tc.email, got, tc.expected)
		}
	}
}

func TestEngineDomainValidIgnoresToggle(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(s *Settings) { s.Defaults.ValidateDomain = false })
	ctx := context.Background()
	if e.DomainValid(ctx, "user@missing.example") {
		t.Error("Expected DomainValid to check the domain even when the default skips it")
	}
	if !e.Valid(ctx, "user@missing.example") {
		t.Error("Expected Valid to honor the default that skips the domain")
	}
	if !e.FormatValid("user@missing.example") || e.FormatValid("user@@missing") {
		t.Error("Unexpected FormatValid result")
	}
}

func TestEngineClearCacheForDomain(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, func(s *Settings) {
		s.Reputation.Lists = []string{"bl.test", "dbl.test"}
	})
	ctx := context.Background()
	c := e.Cache()
	for _, key := range []string{
		"mx:example.com", "a:example.com",
		"dnsbl:bl.test:example.com", "dnsbl:dbl.test:example.com",
		"mx:example.org", "dnsbl:bl.test:example.org",
	} {
		c.Set(ctx, key, true, time.Hour)
	}

	e.ClearCacheForDomain(ctx, "Example.com")

	for _, key := range []string{"mx:example.com", "a:example.com", "dnsbl:bl.test:example.com", "dnsbl:dbl.test:example.com"} {
		if c.Exists(ctx, key) {
			t.Errorf("Expected %s to be removed", key)
		}
	}
	for _, key := range []string{"mx:example.org", "dnsbl:bl.test:example.org"} {
		if !c.Exists(ctx, key) {
			t.Errorf("Expected %s to be kept", key)
		}
	}

	e.ClearCache(ctx)
	if c.Exists(ctx, "mx:example.org") {
		t.Error("Expected ClearCache to remove everything")
	}
}

func TestEngineCacheSelection(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(s *Settings) { s.Cache.Enabled = false })
	if e.Cache() != nil {
		t.Error("Expected no cache when caching is disabled")
	}
	e.ClearCacheForDomain(context.Background(), "example.com")

	custom := cache.NewMemoryCache()
	e = newTestEngine(t, func(s *Settings) {
		s.Cache.Type = "bogus"
		s.Cache.Backend = custom
	})
	if e.Cache() != custom {
		t.Error("Expected the custom backend to be used as-is")
	}
	if !e.Valid(context.Background(), "user@example.com") {
		t.Fatal("Expected user@example.com to be valid")
	}
	if !custom.Exists(context.Background(), "mx:example.com") {
		t.Error("Expected the MX answer to land in the custom backend")
	}

	s := DefaultSettings()
	s.Cache.Type = "bogus"
	if _, err := New(s); !errors.Is(err, cache.ErrUnknownAdapter) {
		t.Errorf("Expected ErrUnknownAdapter, got %v", err)
	}

	s = DefaultSettings()
	s.LogLevel = "chatty"
	if _, err := New(s); err == nil {
		t.Error("Expected unknown log level to be rejected")
	}
}

func TestEngineSettingsAreCopied(t *testing.T) {
	t.Parallel()
	s := DefaultSettings()
	s.BlacklistDomains = []Pattern{Exact("spam.com")}
	e, err := New(s)
	if err != nil {
		t.Fatal(err)
	}
	s.BlacklistDomains[0] = Exact("other.com")
	got := e.Settings()
	if diff := cmp.Diff([]string{"spam.com"}, patternStrings(got.BlacklistDomains)); diff != "" {
		t.Errorf("Engine settings changed with the caller's slice (-want +got):\n%s", diff)
	}
	got.RoleAddresses[0] = "changed"
	if e.Settings().RoleAddresses[0] == "changed" {
		t.Error("Expected Settings() to return a copy")
	}
}

func patternStrings(patterns []Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = p.String()
	}
	return out
}

// The tests below swap the process-wide engine and must not run in parallel.

func TestConfigureAndReset(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	addr := startDNS(t, testZones)
	if err := Configure(func(s *Settings) {
		s.Dns.Address = addr
		s.BlacklistDomains = []Pattern{Exact("example.com")}
	}); err != nil {
		t.Fatalf("Configure() failed: %v", err)
	}
	if Valid("user@example.com") {
		t.Error("Expected configured blacklist to apply")
	}
	if DomainValid("user@example.com", WithValidateDomain(false)) {
		t.Error("Expected DomainValid to check the blacklisted domain regardless of options")
	}

	before := Default()
	if err := Configure(func(s *Settings) { s.Cache.Type = "bogus" }); err == nil {
		t.Error("Expected bad cache type to be rejected")
	}
	if Default() != before {
		t.Error("Expected failed Configure to keep the current engine")
	}

	if err := SetDefaultOptions(WithCheckMX(false)); err != nil {
		t.Fatal(err)
	}
	if Default().Options().CheckMX {
		t.Error("Expected SetDefaultOptions to change the defaults")
	}
	if Default().Cache() != before.Cache() {
		t.Error("Expected unchanged cache settings to keep the cache")
	}
	if len(Default().Settings().BlacklistDomains) != 1 {
		t.Error("Expected SetDefaultOptions to keep the other settings")
	}

	Reset()
	if diff := cmp.Diff(DefaultOptions(), Default().Options()); diff != "" {
		t.Errorf("Reset() did not restore the defaults (-want +got):\n%s", diff)
	}
	if len(Default().Settings().BlacklistDomains) != 0 {
		t.Error("Expected Reset() to clear the blacklist")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	addr := startDNS(t, testZones)
	if err := Configure(func(s *Settings) { s.Dns.Address = addr }); err != nil {
		t.Fatal(err)
	}

	if !Valid("user@example.com") {
		t.Error("Expected user@example.com to be valid")
	}
	if !FormatValid("user@missing.example") {
		t.Error("Expected user@missing.example to be well-formed")
	}
	if DomainValid("user@missing.example") {
		t.Error("Expected missing.example to have no MX record")
	}
	if got := Normalize(" User@Example.COM "); got != "user@example.com" {
		t.Errorf("Normalize() = %q", got)
	}
	if !Default().Cache().Exists(context.Background(), "mx:example.com") {
		t.Error("Expected the MX answer to be cached")
	}
	ClearCacheForDomain("example.com")
	if Default().Cache().Exists(context.Background(), "mx:example.com") {
		t.Error("Expected ClearCacheForDomain to drop the MX answer")
	}

	calls := 0
	compute := func() (string, error) {
		calls++
		return "value", nil
	}
	for i := 0; i < 2; i++ {
		v, err := WithCache("custom:key", 0, false, compute)
		if err != nil || v != "value" {
			t.Fatalf("WithCache() = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected compute to run once, ran %d times", calls)
	}
	ClearCache()
	if Default().Cache().Exists(context.Background(), "custom:key") {
		t.Error("Expected ClearCache to drop everything")
	}

	if err := Configure(func(s *Settings) { s.Cache.Enabled = false }); err != nil {
		t.Fatal(err)
	}
	if _, err := WithCache("custom:key", time.Minute, false, compute); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Expected ErrCacheDisabled, got %v", err)
	}
}

func TestLogLevelFollowsDefaultEngine(t *testing.T) {
	t.Cleanup(Reset)
	Reset()
	start := log.GetLevel()

	s := DefaultSettings()
	s.LogLevel = "debug"
	e, err := New(s)
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != start {
		t.Error("Expected New to leave the log level alone")
	}

	if err := Configure(func(s *Settings) {
		s.LogLevel = "error"
		s.Cache.Type = "bogus"
	}); err == nil {
		t.Fatal("Expected bad cache type to be rejected")
	}
	if log.GetLevel() != start {
		t.Error("Expected a failed Configure to leave the log level alone")
	}

	Use(e)
	if log.GetLevel() != log.DEBUG {
		t.Error("Expected Use to apply the engine's log level")
	}
	if err := Configure(func(s *Settings) { s.LogLevel = "error" }); err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != log.ERROR {
		t.Error("Expected Configure to apply the new log level")
	}
}

func redisSettings(addr string) func(*Settings) {
	return func(s *Settings) {
		s.Cache.Type = cache.KIND_REDIS
		s.Cache.Redis.Address = addr
	}
}

func TestReplacedRedisCacheIsClosed(t *testing.T) {
	t.Cleanup(Reset)
	Reset()
	srv := miniredis.RunT(t)
	srv.Set(cache.REDIS_CACHE_KEY_PREFIX+"mx:example.com", "true")
	ctx := context.Background()

	if err := Configure(redisSettings(srv.Addr())); err != nil {
		t.Fatal(err)
	}
	first := Default().Cache()
	if !first.Exists(ctx, "mx:example.com") {
		t.Fatal("Expected the redis cache to be reachable")
	}

	if err := SetDefaultOptions(WithCheckA(true)); err != nil {
		t.Fatal(err)
	}
	if Default().Cache() != first || !first.Exists(ctx, "mx:example.com") {
		t.Error("Expected unchanged cache settings to keep the connection open")
	}

	Reset()
	if first.Exists(ctx, "mx:example.com") {
		t.Error("Expected the replaced redis cache to be closed")
	}

	if err := Configure(redisSettings(srv.Addr())); err != nil {
		t.Fatal(err)
	}
	second := Default().Cache()
	if err := Configure(func(s *Settings) { s.Cache.Type = cache.KIND_MEMORY }); err != nil {
		t.Fatal(err)
	}
	if second.Exists(ctx, "mx:example.com") {
		t.Error("Expected switching backends to close the redis cache")
	}
}

func TestEngineCacheOwnership(t *testing.T) {
	t.Cleanup(Reset)
	Reset()
	srv := miniredis.RunT(t)
	srv.Set(cache.REDIS_CACHE_KEY_PREFIX+"mx:example.com", "true")
	ctx := context.Background()

	s := DefaultSettings()
	redisSettings(srv.Addr())(&s)
	e, err := New(s)
	if err != nil {
		t.Fatal(err)
	}
	Use(e)
	if err := SetDefaultOptions(WithCheckA(true)); err != nil {
		t.Fatal(err)
	}
	Reset()
	if !e.Cache().Exists(ctx, "mx:example.com") {
		t.Error("Expected an engine given to Use to stay open")
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if e.Cache().Exists(ctx, "mx:example.com") {
		t.Error("Expected Close to release the engine's own cache")
	}

	backend := cache.NewRedisCache(srv.Addr(), "", 0, time.Second)
	t.Cleanup(func() { backend.Close() })
	s = DefaultSettings()
	s.Cache.Backend = backend
	e, err = New(s)
	if err != nil {
		t.Fatal(err)
	}
	e.Close()
	if !backend.Exists(ctx, "mx:example.com") {
		t.Error("Expected Close to leave a caller's backend open")
	}
}
