/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dnsLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emailcheck",
		Name:      "dns_lookups_total",
		Help:      "DNS queries sent, by record type and outcome (found, absent, error).",
	}, []string{"type", "result"})

	dnsblQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emailcheck",
		Name:      "dnsbl_queries_total",
		Help:      "Reputation list checks, by list and outcome (listed, clean, error).",
	}, []string{"list", "result"})

	domainDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emailcheck",
		Name:      "domain_decisions_total",
		Help:      "Domain validations, by the policy step that decided and the result.",
	}, []string{"step", "result"})
)

// RegisterMetrics exposes the package counters on reg. Nothing is
// registered unless this is called.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{dnsLookups, dnsblQueries, domainDecisions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func resultLabel(ok bool) string {
	if ok {
		return "accept"
	}
	return "reject"
}
