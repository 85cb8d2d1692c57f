/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Zuplu/emailcheck/cache"
	"github.com/Zuplu/emailcheck/internal/address"
	"github.com/Zuplu/emailcheck/internal/utils/log"
)

// Engine binds one Settings value to its cache, resolver and policy. It is
// safe for concurrent use and never changes after New.
type Engine struct {
	settings   Settings
	logLevel   *log.LogLevel
	cache      cache.Cache
	ownsCache  bool
	resolver   *Resolver
	reputation *ReputationChecker
	domains    *DomainValidator
}

// New validates settings and builds every component. Configuration
// mistakes such as an unknown cache type are reported here, not on the
// first lookup. The process-wide log level is only changed once the engine
// becomes the default one.
func New(settings Settings) (*Engine, error) {
	return newEngine(settings, nil)
}

func newEngine(settings Settings, prev *Engine) (*Engine, error) {
	settings = settings.clone()
	level, err := parseLogLevel(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	var c cache.Cache
	owned := false
	switch {
	case !settings.Cache.Enabled:
	case settings.Cache.Backend != nil:
		c = settings.Cache.Backend
	case prev != nil && prev.cache != nil && sameCacheBackend(prev.settings.Cache, settings.Cache):
		c, owned = prev.cache, prev.ownsCache
	default:
		owned = true
		c, err = cache.New(settings.Cache.Type, cache.AdapterOptions{
			RedisAddress:  settings.Cache.Redis.Address,
			RedisPassword: settings.Cache.Redis.Password,
			RedisDB:       settings.Cache.Redis.DB,
			DialTimeout:   settings.Defaults.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("could not set up cache: %w", err)
		}
	}

	e := &Engine{settings: settings, logLevel: level, cache: c, ownsCache: owned}
	e.resolver = NewResolver(settings.Dns.Address, c, settings.Cache.TTL)
	e.reputation = NewReputationChecker(e.resolver, settings.Reputation, c, settings.Cache.TTL)
	e.domains = NewDomainValidator(&e.settings, e.resolver, e.reputation)
	return e, nil
}

// parseLogLevel returns nil for an empty name, which keeps the current level.
func parseLogLevel(name string) (*log.LogLevel, error) {
	if name == "" {
		return nil, nil
	}
	level, ok := log.LogLevels[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", name)
	}
	return &level, nil
}

// sameCacheBackend tells whether a built-in backend can be carried over
// to a reconfigured engine.
func sameCacheBackend(a, b CacheConfig) bool {
	return a.Backend == nil && b.Backend == nil &&
		a.Enabled == b.Enabled && a.Type == b.Type && a.Redis == b.Redis
}

// Settings returns a copy of the engine's configuration.
func (e *Engine) Settings() Settings {
	return e.settings.clone()
}

// Cache is nil when caching is disabled.
func (e *Engine) Cache() cache.Cache {
	return e.cache
}

func (e *Engine) Resolver() *Resolver {
	return e.resolver
}

func (e *Engine) Reputation() *ReputationChecker {
	return e.reputation
}

func (e *Engine) DomainValidator() *DomainValidator {
	return e.domains
}

// Options merges per-call overrides into the configured defaults.
func (e *Engine) Options(opts ...Option) Options {
	return e.settings.Defaults.With(opts...)
}

func (e *Engine) Checker(email string, opts ...Option) *Checker {
	return newChecker(email, e.Options(opts...), &e.settings, e.domains)
}

func (e *Engine) Valid(ctx context.Context, email string, opts ...Option) bool {
	return e.Checker(email, opts...).Valid(ctx)
}

func (e *Engine) FormatValid(email string) bool {
	return e.Checker(email, WithValidateFormat(true)).FormatValid()
}

func (e *Engine) DomainValid(ctx context.Context, email string, opts ...Option) bool {
	opts = append(opts[:len(opts):len(opts)], WithValidateDomain(true))
	return e.Checker(email, opts...).DomainValid(ctx)
}

func (e *Engine) Report(ctx context.Context, email string, opts ...Option) Report {
	return e.Checker(email, opts...).Report(ctx)
}

func (e *Engine) Normalize(email string) string {
	return address.Normalize(email)
}

// Close releases a cache connection the engine opened itself. A Backend
// passed in through Settings is left to its owner.
func (e *Engine) Close() error {
	if !e.ownsCache {
		return nil
	}
	if closer, ok := e.cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (e *Engine) ClearCache(ctx context.Context) {
	if e.cache != nil {
		e.cache.Clear(ctx)
	}
}

// ClearCacheForDomain forgets the MX, A and reputation answers for domain.
func (e *Engine) ClearCacheForDomain(ctx context.Context, domain string) {
	domain = address.ASCIIDomain(domain)
	if e.cache == nil || domain == "" {
		return
	}
	e.cache.Delete(ctx, "mx:"+domain)
	e.cache.Delete(ctx, "a:"+domain)
	for _, host := range e.settings.Reputation.Lists {
		e.cache.Delete(ctx, dnsblCacheKey(host, domain))
	}
}

var (
	defaultEngine atomic.Pointer[Engine]
	configureMu   sync.Mutex
)

// Default returns the process-wide engine, building it from
// DefaultSettings on first use.
func Default() *Engine {
	if e := defaultEngine.Load(); e != nil {
		return e
	}
	configureMu.Lock()
	defer configureMu.Unlock()
	if e := defaultEngine.Load(); e != nil {
		return e
	}
	e, err := New(DefaultSettings())
	if err != nil {
		panic(fmt.Sprintf("default settings rejected: %v", err))
	}
	install(e, true)
	return e
}

// managedEngine marks an engine built by Default, Configure or Reset. Only
// those have their cache closed when they are replaced.
var managedEngine sync.Map

// install makes e the default engine and applies its log level. Callers
// hold configureMu. A replaced engine that was built here gives up a cache
// the new one does not carry over; calls still running on it see misses.
func install(e *Engine, managed bool) {
	if managed {
		managedEngine.Store(e, struct{}{})
	}
	if e.logLevel != nil {
		log.SetLevel(*e.logLevel)
	}
	prev := defaultEngine.Swap(e)
	if prev == nil || prev == e {
		return
	}
	if _, ok := managedEngine.LoadAndDelete(prev); ok && prev.cache != e.cache {
		if err := prev.Close(); err != nil {
			log.Debugf("Could not close replaced cache: %v", err)
		}
	}
}

// Configure edits a copy of the default engine's settings and swaps in a
// new engine built from them. On error the current engine stays in place.
// Calls already running keep the engine they started with.
func Configure(fn func(*Settings)) error {
	current := Default()
	configureMu.Lock()
	defer configureMu.Unlock()
	if latest := defaultEngine.Load(); latest != nil {
		current = latest
	}
	settings := current.Settings()
	fn(&settings)
	e, err := newEngine(settings, current)
	if err != nil {
		return err
	}
	// a cache carried over from an engine given to Use still belongs to its caller
	if _, managed := managedEngine.Load(current); !managed && e.cache == current.cache {
		e.ownsCache = false
	}
	install(e, true)
	return nil
}

// SetDefaultOptions changes the Options every default-engine call starts from.
func SetDefaultOptions(opts ...Option) error {
	return Configure(func(s *Settings) {
		s.Defaults = s.Defaults.With(opts...)
	})
}

// Use installs e as the default engine and applies its log level. The
// caller keeps ownership of e and closes it when done.
func Use(e *Engine) {
	configureMu.Lock()
	defer configureMu.Unlock()
	install(e, false)
}

// Reset restores DefaultSettings with an empty cache.
func Reset() {
	e, err := New(DefaultSettings())
	if err != nil {
		panic(fmt.Sprintf("default settings rejected: %v", err))
	}
	configureMu.Lock()
	defer configureMu.Unlock()
	install(e, true)
}
