/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"context"
	"strings"

	"github.com/Zuplu/emailcheck/internal/address"
	"github.com/Zuplu/emailcheck/internal/utils/valid"
)

// Checker validates one address under fixed Options.
type Checker struct {
	email    string
	addr     address.Address
	opts     Options
	settings *Settings
	domains  *DomainValidator
}

func newChecker(email string, opts Options, settings *Settings, domains *DomainValidator) *Checker {
	email = strings.TrimSpace(email)
	return &Checker{
		email:    email,
		addr:     address.Parse(email),
		opts:     opts,
		settings: settings,
		domains:  domains,
	}
}

func (c *Checker) Email() string {
	return c.email
}

func (c *Checker) Options() Options {
	return c.opts
}

func (c *Checker) Valid(ctx context.Context) bool {
	if c.email == "" {
		return false
	}
	if c.settings.RejectRoleAddresses && c.RoleAddress() {
		return false
	}
	return c.FormatValid() && c.DomainValid(ctx)
}

// RoleAddress reports whether the local part names a configured role
// mailbox such as "admin" or "admin+billing".
func (c *Checker) RoleAddress() bool {
	local, _, ok := strings.Cut(c.email, "@")
	if !ok {
		return false
	}
	return valid.IsRoleLocalPart(local, c.settings.RoleAddresses)
}

func (c *Checker) FormatValid() bool {
	if !c.opts.ValidateFormat {
		return true
	}
	return c.addr.Valid()
}

func (c *Checker) DomainValid(ctx context.Context) bool {
	if !c.opts.ValidateDomain {
		return true
	}
	return c.domains.Valid(ctx, c.domain(), c.opts)
}

func (c *Checker) domain() string {
	_, domain, ok := strings.Cut(c.email, "@")
	if !ok {
		return ""
	}
	return address.ASCIIDomain(domain)
}

// NormalizedEmail is empty unless the address is well-formed.
func (c *Checker) NormalizedEmail() string {
	if !c.addr.Valid() {
		return ""
	}
	return c.addr.Normal()
}

func (c *Checker) CanonicalEmail() string {
	if !c.addr.Valid() {
		return ""
	}
	return c.addr.Canonical()
}

func (c *Checker) RedactedEmail() string {
	if !c.addr.Valid() {
		return ""
	}
	return c.addr.Redacted()
}

// Report is the outcome of every check on one address, for display.
type Report struct {
	Address     string `json:"address"`
	Valid       bool   `json:"valid"`
	FormatValid bool   `json:"format_valid"`
	DomainValid bool   `json:"domain_valid"`
	DomainStep  Step   `json:"domain_step,omitempty"`
	RoleAddress bool   `json:"role_address"`
	Normalized  string `json:"normalized,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	Redacted    string `json:"redacted,omitempty"`
}

// Report runs the format and domain checks without short-circuiting.
func (c *Checker) Report(ctx context.Context) Report {
	r := Report{
		Address:     c.email,
		FormatValid: c.FormatValid(),
		DomainValid: true,
		RoleAddress: c.RoleAddress(),
		Normalized:  c.NormalizedEmail(),
		Canonical:   c.CanonicalEmail(),
		Redacted:    c.RedactedEmail(),
	}
	if c.opts.ValidateDomain {
		r.DomainValid, r.DomainStep = c.domains.Decide(ctx, c.domain(), c.opts)
	}
	r.Valid = c.email != "" && r.FormatValid && r.DomainValid &&
		!(c.settings.RejectRoleAddresses && r.RoleAddress)
	return r
}
