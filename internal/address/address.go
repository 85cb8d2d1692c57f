/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

// Package address parses and rewrites email addresses. It knows nothing
// about DNS; it only answers syntax questions and produces the normal,
// canonical and redacted forms.
package address

import (
	"strings"

	"github.com/asaskevich/govalidator/v11"
	"golang.org/x/net/idna"
)

// Providers whose mailboxes ignore dots and +tags in the local part.
var canonicalProviders = map[string]string{
	"gmail.com":      "gmail.com",
	"googlemail.com": "gmail.com",
}

type Address struct {
	Original string
	Local    string
	Domain   string
}

// Parse splits raw at the first '@'. A missing or empty part leaves both
// Local and Domain empty.
func Parse(raw string) Address {
	a := Address{Original: raw}
	local, domain, ok := strings.Cut(strings.TrimSpace(raw), "@")
	if !ok {
		return a
	}
	local, domain = strings.TrimSpace(local), strings.TrimSpace(domain)
	if local == "" || domain == "" {
		return a
	}
	a.Local, a.Domain = local, domain
	return a
}

func (a Address) Valid() bool {
	if a.Local == "" || a.Domain == "" {
		return false
	}
	return govalidator.IsEmail(a.Normal())
}

// Normal is the lowercased address with the domain in its ASCII (punycode) form.
func (a Address) Normal() string {
	if a.Local == "" || a.Domain == "" {
		return ""
	}
	return strings.ToLower(a.Local) + "@" + asciiDomain(a.Domain)
}

// Canonical folds provider-specific aliases onto one mailbox, e.g.
// "John.Doe+news@googlemail.com" becomes "johndoe@gmail.com".
func (a Address) Canonical() string {
	normal := a.Normal()
	if normal == "" {
		return ""
	}
	local, domain, _ := strings.Cut(normal, "@")
	target, ok := canonicalProviders[domain]
	if !ok {
		return normal
	}
	local, _, _ = strings.Cut(local, "+")
	local = strings.ReplaceAll(local, ".", "")
	return local + "@" + target
}

func (a Address) Redacted() string {
	if a.Domain == "" {
		return ""
	}
	return "***@" + strings.ToLower(a.Domain)
}

func (a Address) String() string {
	return a.Original
}

// Normalize lowercases raw and converts an IDN domain to ASCII. Input
// without a usable local part and domain comes back trimmed but otherwise
// untouched.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	local, domain, ok := strings.Cut(strings.ToLower(s), "@")
	if !ok || local == "" || domain == "" {
		return s
	}
	return local + "@" + asciiDomain(domain)
}

// ASCIIDomain lowercases domain and converts an IDN to punycode. Names
// idna rejects come back lowercased only.
func ASCIIDomain(domain string) string {
	return asciiDomain(strings.TrimSpace(domain))
}

func asciiDomain(domain string) string {
	domain = strings.ToLower(domain)
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return domain
	}
	return ascii
}
