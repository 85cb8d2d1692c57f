/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"context"
	"time"

	"github.com/Zuplu/emailcheck/internal/utils/log"
)

// Step names the policy stage that decided a domain.
type Step string

const (
	StepEmpty      Step = "empty"
	StepWhitelist  Step = "whitelist"
	StepBlacklist  Step = "blacklist"
	StepCustom     Step = "custom"
	StepTestMode   Step = "test-mode"
	StepReputation Step = "reputation"
	StepDNS        Step = "dns"
)

// RecordChecker is the part of Resolver the domain policy needs.
type RecordChecker interface {
	HasMXRecord(ctx context.Context, domain string, timeout time.Duration) bool
	HasARecord(ctx context.Context, domain string, timeout time.Duration) bool
}

type DomainValidator struct {
	settings   *Settings
	records    RecordChecker
	reputation *ReputationChecker
}

func NewDomainValidator(settings *Settings, records RecordChecker, reputation *ReputationChecker) *DomainValidator {
	return &DomainValidator{settings: settings, records: records, reputation: reputation}
}

func (v *DomainValidator) Valid(ctx context.Context, domain string, opts Options) bool {
	ok, _ := v.Decide(ctx, domain, opts)
	return ok
}

// Decide runs the policy in order and stops at the first step that
// determines the outcome:
//
//	empty, whitelist, blacklist, custom checker, test mode, reputation, dns
//
// A non-empty whitelist is authoritative.
func (v *DomainValidator) Decide(ctx context.Context, domain string, opts Options) (ok bool, step Step) {
	defer func() {
		domainDecisions.WithLabelValues(string(step), resultLabel(ok)).Inc()
		log.Debugf("Domain %q: %s at step %s", domain, resultLabel(ok), step)
	}()

	s := v.settings
	if domain == "" {
		return false, StepEmpty
	}
	if len(s.WhitelistDomains) > 0 {
		return matchAny(s.WhitelistDomains, domain), StepWhitelist
	}
	if matchAny(s.BlacklistDomains, domain) {
		return false, StepBlacklist
	}
	if s.DomainChecker != nil && !s.DomainChecker(domain) {
		return false, StepCustom
	}
	if s.TestMode {
		return true, StepTestMode
	}
	if s.Reputation.Enabled && v.reputation != nil && !v.reputation.Safe(ctx, domain) {
		return false, StepReputation
	}
	return v.hasRecords(ctx, domain, opts), StepDNS
}

func (v *DomainValidator) hasRecords(ctx context.Context, domain string, opts Options) bool {
	if opts.CheckMX && !v.records.HasMXRecord(ctx, domain, opts.Timeout) {
		return false
	}
	if opts.CheckA && !v.records.HasARecord(ctx, domain, opts.Timeout) {
		return false
	}
	return true
}
