/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Zuplu/emailcheck/cache"
	"github.com/Zuplu/emailcheck/internal/utils/log"
	"github.com/Zuplu/emailcheck/internal/utils/valid"
	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

const FALLBACK_NAMESERVER = "127.0.0.53:53"

var (
	ErrInvalidName  = errors.New("invalid DNS name")
	ErrLookupFailed = errors.New("DNS lookup failed")
)

// RecordLookup answers whether name has at least one record of qtype.
// NXDOMAIN is (false, nil); only failures to get an answer are errors.
type RecordLookup interface {
	Lookup(ctx context.Context, name string, qtype uint16, timeout time.Duration) (bool, error)
}

// Resolver checks MX and A presence against a single nameserver and
// memoizes the answers in an optional cache.
type Resolver struct {
	address string
	cache   cache.Cache
	ttl     time.Duration
	flight  singleflight.Group
}

// NewResolver queries address (host:port). An empty address uses the
// system nameserver. c may be nil to disable caching.
func NewResolver(address string, c cache.Cache, ttl time.Duration) *Resolver {
	if address == "" {
		address = systemNameserver()
	}
	return &Resolver{address: address, cache: c, ttl: ttl}
}

func systemNameserver() string {
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		return FALLBACK_NAMESERVER
	}
	port := config.Port
	if port == "" {
		port = "53"
	}
	return net.JoinHostPort(config.Servers[0], port)
}

func (r *Resolver) Address() string {
	return r.address
}

// HasMXRecord never fails: errors and timeouts count as "no record".
func (r *Resolver) HasMXRecord(ctx context.Context, domain string, timeout time.Duration) bool {
	return r.hasRecord(ctx, "mx:", domain, dns.TypeMX, timeout)
}

func (r *Resolver) HasARecord(ctx context.Context, domain string, timeout time.Duration) bool {
	return r.hasRecord(ctx, "a:", domain, dns.TypeA, timeout)
}

func (r *Resolver) hasRecord(ctx context.Context, prefix, domain string, qtype uint16, timeout time.Duration) bool {
	if domain == "" {
		return false
	}
	found, _ := cache.Fetch(ctx, r.cache, prefix+domain, r.ttl, false, func() (bool, error) {
		found, err := r.Lookup(ctx, domain, qtype, timeout)
		if err != nil {
			// the caller gave up, which says nothing about the domain
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			log.Debugf("DNS error during %s lookup for %q: %v", dns.TypeToString[qtype], domain, err)
			return false, nil
		}
		return found, nil
	})
	return found
}

// Lookup sends one query, bounded by timeout. Identical lookups already in
// flight share a single query, which runs detached from any one caller:
// a caller whose ctx ends gets ctx.Err() while the query goes on for the
// others.
func (r *Resolver) Lookup(ctx context.Context, name string, qtype uint16, timeout time.Duration) (bool, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if !valid.IsDNSName(name) {
		return false, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	typ := strings.ToLower(dns.TypeToString[qtype])
	if err := ctx.Err(); err != nil {
		dnsLookups.WithLabelValues(typ, "error").Inc()
		return false, err
	}
	key := fmt.Sprintf("%s %s %s", dns.TypeToString[qtype], name, timeout)
	ch := r.flight.DoChan(key, func() (interface{}, error) {
		return r.exchange(context.WithoutCancel(ctx), name, qtype, timeout)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		dnsLookups.WithLabelValues(typ, "error").Inc()
		return false, ctx.Err()
	}
	if res.Err != nil {
		dnsLookups.WithLabelValues(typ, "error").Inc()
		return false, res.Err
	}
	found := res.Val.(bool)
	if found {
		dnsLookups.WithLabelValues(typ, "found").Inc()
	} else {
		dnsLookups.WithLabelValues(typ, "absent").Inc()
	}
	return found, nil
}

func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.SetEdns0(1232, false)

	client := &dns.Client{Timeout: timeout}
	resp, _, err := client.ExchangeContext(ctx, m, r.address)
	if err == nil && resp.Truncated {
		client.Net = "tcp"
		resp, _, err = client.ExchangeContext(ctx, m, r.address)
	}
	if err != nil {
		return false, err
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrLookupFailed, dns.RcodeToString[resp.Rcode])
	}

	for _, answer := range resp.Answer {
		if answer.Header().Rrtype == qtype {
			return true, nil
		}
	}
	return false, nil
}
