/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zuplu/emailcheck/cache"
	"github.com/Zuplu/emailcheck/internal/utils/log"
	"github.com/Zuplu/emailcheck/internal/utils/valid"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// ReputationChecker queries DNS-based reputation lists. A domain is listed
// on a list when the composed query name has an A record.
type ReputationChecker struct {
	lookup RecordLookup
	cfg    ReputationConfig
	cache  cache.Cache
	ttl    time.Duration
}

func NewReputationChecker(lookup RecordLookup, cfg ReputationConfig, c cache.Cache, ttl time.Duration) *ReputationChecker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DEFAULT_REPUTATION_CONCURRENCY
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DEFAULT_TIMEOUT
	}
	return &ReputationChecker{lookup: lookup, cfg: cfg, cache: c, ttl: ttl}
}

func (r *ReputationChecker) Lists() []string {
	return r.cfg.Lists
}

// QueryName composes <reversed domain>.[<api key>.]<host>.
func (r *ReputationChecker) QueryName(domain, host string) string {
	name := valid.ReverseLabels(strings.TrimSuffix(domain, "."))
	if key := r.cfg.APIKeys[host]; key != "" {
		name += "." + key
	}
	return name + "." + strings.TrimSuffix(host, ".")
}

func dnsblCacheKey(host, domain string) string {
	return "dnsbl:" + host + ":" + domain
}

// ListedIn reports whether host lists domain. Lookup failures are not
// cached and resolve to the configured fallback action.
func (r *ReputationChecker) ListedIn(ctx context.Context, domain, host string) bool {
	if domain == "" || host == "" {
		return false
	}
	listed, err := cache.Fetch(ctx, r.cache, dnsblCacheKey(host, domain), r.ttl, false, func() (bool, error) {
		return r.lookup.Lookup(ctx, r.QueryName(domain, host), dns.TypeA, r.cfg.Timeout)
	})
	if err != nil {
		dnsblQueries.WithLabelValues(host, "error").Inc()
		log.Debugf("Reputation list %q failed for %q, applying fallback %q: %v", host, domain, r.cfg.Fallback, err)
		return r.cfg.Fallback.listedOnError()
	}
	if listed {
		dnsblQueries.WithLabelValues(host, "listed").Inc()
		log.Infof("Domain %q is listed on %q", domain, host)
	} else {
		dnsblQueries.WithLabelValues(host, "clean").Inc()
	}
	return listed
}

// Safe checks every configured list concurrently and is true only when
// none of them lists domain.
func (r *ReputationChecker) Safe(ctx context.Context, domain string) bool {
	if domain == "" || len(r.cfg.Lists) == 0 {
		return true
	}
	results := make([]bool, len(r.cfg.Lists))
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i, host := range r.cfg.Lists {
		i, host := i, host
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					log.Errorf("Reputation check against %q panicked: %v", host, p)
					results[i] = r.cfg.Fallback.listedOnError()
					err = fmt.Errorf("reputation list %q: panic: %v", host, p)
				}
			}()
			results[i] = r.ListedIn(ctx, domain, host)
			return nil
		})
	}
	// task errors only carry recovered panics, their fallback is already in results
	_ = g.Wait()
	for _, listed := range results {
		if listed {
			return false
		}
	}
	return true
}

func (r *ReputationChecker) Listed(ctx context.Context, domain string) bool {
	return !r.Safe(ctx, domain)
}
