/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DEFAULT_TIMEOUT = 5 * time.Second

// Options selects which checks a single validation runs.
type Options struct {
	ValidateFormat bool          `yaml:"validate-format"`
	ValidateDomain bool          `yaml:"validate-domain"`
	CheckMX        bool          `yaml:"check-mx"`
	CheckA         bool          `yaml:"check-a"`
	Timeout        time.Duration `yaml:"timeout"`
}

func DefaultOptions() Options {
	return Options{
		ValidateFormat: true,
		ValidateDomain: true,
		CheckMX:        true,
		CheckA:         false,
		Timeout:        DEFAULT_TIMEOUT,
	}
}

func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	*o = DefaultOptions()
	type alias Options
	return value.Decode((*alias)(o))
}

// Option overrides one field of the engine's default Options for a single call.
type Option func(*Options)

func WithValidateFormat(on bool) Option { return func(o *Options) { o.ValidateFormat = on } }

func WithValidateDomain(on bool) Option { return func(o *Options) { o.ValidateDomain = on } }

func WithCheckMX(on bool) Option { return func(o *Options) { o.CheckMX = on } }

func WithCheckA(on bool) Option { return func(o *Options) { o.CheckA = on } }

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

func (o Options) With(opts ...Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// FallbackAction decides what a failed reputation query means.
type FallbackAction string

const (
	FallbackAllow  FallbackAction = "allow"
	FallbackReject FallbackAction = "reject"
)

// listedOnError is fail-closed only for "reject"; anything else fails open.
func (f FallbackAction) listedOnError() bool {
	return f == FallbackReject
}

func (f *FallbackAction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch action := FallbackAction(strings.ToLower(strings.TrimSpace(s))); action {
	case FallbackAllow, FallbackReject:
		*f = action
		return nil
	default:
		return fmt.Errorf("line %d: unknown fallback action %q (expected allow or reject)", value.Line, s)
	}
}

var ErrBadPattern = errors.New("invalid pattern")

// Pattern matches a domain either exactly or by regular expression. The
// regular expression matches anywhere in the domain unless anchored.
type Pattern struct {
	exact string
	re    *regexp.Regexp
}

func Exact(domain string) Pattern {
	return Pattern{exact: domain}
}

func Regexp(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

// MustPattern is ParsePattern for literals known to be valid.
func MustPattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePattern reads "/expr/flags" as a regular expression (flags i, m, s
// and U) and anything else as an exact domain.
func ParsePattern(s string) (Pattern, error) {
	if len(s) == 0 {
		return Pattern{}, fmt.Errorf("%w: pattern is empty", ErrBadPattern)
	}
	if len(s) < 3 || s[0] != '/' {
		return Exact(s), nil
	}
	end := strings.LastIndexByte(s, '/')
	if end == 0 {
		return Exact(s), nil
	}
	expr, flags := s[1:end], s[end+1:]
	var b strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			b.WriteString("(?")
			b.WriteRune(f)
			b.WriteByte(')')
		default:
			return Pattern{}, fmt.Errorf("%w: unknown flag %q in %q", ErrBadPattern, f, s)
		}
	}
	b.WriteString(expr)
	re, err := regexp.Compile(b.String())
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %q: %v", ErrBadPattern, s, err)
	}
	return Regexp(re), nil
}

func (p Pattern) Match(domain string) bool {
	if p.re != nil {
		return p.re.MatchString(domain)
	}
	return p.exact != "" && p.exact == domain
}

func (p Pattern) String() string {
	if p.re != nil {
		return "/" + p.re.String() + "/"
	}
	return p.exact
}

func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePattern(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*p = parsed
	return nil
}

func (p Pattern) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func matchAny(patterns []Pattern, domain string) bool {
	for _, p := range patterns {
		if p.Match(domain) {
			return true
		}
	}
	return false
}
