/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package emailcheck

import (
	_ "embed"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/Zuplu/emailcheck/cache"
	"gopkg.in/yaml.v3"
)

//go:embed configs/config.default.yaml
var defaultConfigYaml []byte

var DefaultRoleAddresses = []string{
	"noreply", "no-reply", "admin", "administrator", "support", "help",
	"info", "contact", "sales", "marketing", "postmaster", "abuse",
}

const DEFAULT_REPUTATION_CONCURRENCY = 8

type ReputationConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Lists       []string          `yaml:"lists"`
	Timeout     time.Duration     `yaml:"timeout"`
	Fallback    FallbackAction    `yaml:"fallback"`
	APIKeys     map[string]string `yaml:"api-keys"`
	Concurrency int               `yaml:"concurrency"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Type    string        `yaml:"type"`
	TTL     time.Duration `yaml:"ttl"`
	File    string        `yaml:"file"`
	Redis   RedisConfig   `yaml:"redis"`
	// Backend, when set, is used instead of building one from Type.
	Backend cache.Cache `yaml:"-"`
}

type DnsConfig struct {
	// Address of the nameserver as host:port. Empty means the first
	// nameserver in /etc/resolv.conf.
	Address string `yaml:"address"`
}

// Settings is the policy configuration shared by every validation an
// Engine runs. Engines copy it on construction; mutate a copy and build a
// new Engine (or use Configure for the default one) to change it.
type Settings struct {
	Defaults            Options           `yaml:"defaults"`
	BlacklistDomains    []Pattern         `yaml:"blacklist-domains"`
	WhitelistDomains    []Pattern         `yaml:"whitelist-domains"`
	DomainChecker       func(string) bool `yaml:"-"`
	TestMode            bool              `yaml:"test-mode"`
	RejectRoleAddresses bool              `yaml:"reject-role-addresses"`
	RoleAddresses       []string          `yaml:"role-addresses"`
	Reputation          ReputationConfig  `yaml:"reputation"`
	Cache               CacheConfig       `yaml:"cache"`
	Dns                 DnsConfig         `yaml:"dns"`
	LogLevel            string            `yaml:"log-level"`
}

func DefaultSettings() Settings {
	return Settings{
		Defaults:      DefaultOptions(),
		RoleAddresses: slices.Clone(DefaultRoleAddresses),
		Reputation: ReputationConfig{
			Timeout:     DEFAULT_TIMEOUT,
			Fallback:    FallbackAllow,
			Concurrency: DEFAULT_REPUTATION_CONCURRENCY,
		},
		Cache: CacheConfig{
			Enabled: true,
			Type:    cache.KIND_MEMORY,
			TTL:     cache.CACHE_DEFAULT_TTL,
			Redis:   RedisConfig{Address: "127.0.0.1:6379"},
		},
		LogLevel: "warn",
	}
}

func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	// Set default values
	*s = DefaultSettings()
	type alias Settings
	return value.Decode((*alias)(s))
}

func (s Settings) clone() Settings {
	s.BlacklistDomains = slices.Clone(s.BlacklistDomains)
	s.WhitelistDomains = slices.Clone(s.WhitelistDomains)
	s.RoleAddresses = slices.Clone(s.RoleAddresses)
	s.Reputation.Lists = slices.Clone(s.Reputation.Lists)
	s.Reputation.APIKeys = maps.Clone(s.Reputation.APIKeys)
	return s
}

// ParseConfig reads YAML settings; keys that are absent keep their defaults.
func ParseConfig(data []byte) (Settings, error) {
	settings := DefaultSettings()
	return settings, yaml.Unmarshal(data, &settings)
}

// LoadConfig reads settings from filename. An empty filename yields the
// embedded default configuration.
func LoadConfig(filename string) (Settings, error) {
	if filename == "" {
		return ParseConfig(defaultConfigYaml)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return DefaultSettings(), err
	}
	return ParseConfig(data)
}
