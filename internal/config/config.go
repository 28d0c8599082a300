package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultListenAddr   = ":3580"
	DefaultProbeTimeout = 5 * time.Second
	DefaultTokenTTL     = 2 * time.Minute
)

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Tokens     TokenConfig       `yaml:"tokens"`
	Probe      ProbeConfig       `yaml:"probe"`
	Transports []TransportConfig `yaml:"transports"`
	Policy     PolicyConfig      `yaml:"policy"`
	Audit      AuditConfig       `yaml:"audit"`
	Admin      AdminConfig       `yaml:"admin"`
}

type ServerConfig struct {
	// Addr is the address the HTTP server listens on, e.g. ":3580".
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds the graceful shutdown. Running streams are cut off after it.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type TokenConfig struct {
	// DefaultTTL is used when a token request does not carry an expiry.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// MaxTTL caps the lifetime a requester can ask for. Zero means unlimited.
	MaxTTL time.Duration `yaml:"max_ttl"`

	// Eviction configures the optional removal of expired tokens.
	Eviction EvictionConfig `yaml:"eviction"`
}

// EvictionConfig controls the background purge of expired tokens.
// It is disabled by default: expired tokens stay in the registry and are rejected on use.
type EvictionConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ProbeConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// TransportConfig holds configuration for an upstream stream transport.
type TransportConfig struct {
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`    // e.g., "websocket", "tcp"
	Schemes []string       `yaml:"schemes"` // URL schemes routed to this transport
	Options map[string]any `yaml:"options"` // transport-specific settings
}

// PolicyConfig restricts which destinations tokens can be issued for.
type PolicyConfig struct {
	// Expr is an expr-lang expression evaluated against the destination.
	// Leaving this empty allows every reachable destination.
	Expr string `yaml:"expr"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// AdminConfig enables the admin guard for introspection routes.
type AdminConfig struct {
	// SigningKey is the HMAC key admin JWTs are signed with.
	// If empty, introspection routes are public.
	SigningKey string `yaml:"signing_key"`

	// SigningKeyFile can be used instead of SigningKey.
	SigningKeyFile string `yaml:"signing_key_file"`
}

// Key returns the admin signing key, reading SigningKeyFile if needed.
func (a AdminConfig) Key() ([]byte, error) {
	if a.SigningKey != "" {
		return []byte(a.SigningKey), nil
	}
	if a.SigningKeyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading admin signing key: %w", err)
	}
	return []byte(strings.TrimSpace(string(data))), nil
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates a YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultListenAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Tokens.DefaultTTL == 0 {
		c.Tokens.DefaultTTL = DefaultTokenTTL
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = DefaultProbeTimeout
	}
}

func (c *Config) Validate() error {
	if c.Tokens.DefaultTTL < 0 {
		return fmt.Errorf("tokens.default_ttl must not be negative")
	}
	if c.Tokens.MaxTTL < 0 {
		return fmt.Errorf("tokens.max_ttl must not be negative")
	}
	if c.Tokens.MaxTTL > 0 && c.Tokens.DefaultTTL > c.Tokens.MaxTTL {
		return fmt.Errorf("tokens.default_ttl (%s) exceeds tokens.max_ttl (%s)", c.Tokens.DefaultTTL, c.Tokens.MaxTTL)
	}
	if c.Tokens.Eviction.Interval < 0 {
		return fmt.Errorf("tokens.eviction.interval must not be negative")
	}
	if c.Probe.Timeout < 0 {
		return fmt.Errorf("probe.timeout must not be negative")
	}

	names := make(map[string]struct{})
	schemes := make(map[string]string)
	for idx, t := range c.Transports {
		if t.Name == "" {
			return fmt.Errorf("transport at index %d has empty name", idx)
		}
		if _, exists := names[t.Name]; exists {
			return fmt.Errorf("transport name '%s' is not unique", t.Name)
		}
		names[t.Name] = struct{}{}
		if t.Type == "" {
			return fmt.Errorf("transport '%s' missing type", t.Name)
		}
		for _, scheme := range t.Schemes {
			scheme = strings.ToLower(scheme)
			if other, taken := schemes[scheme]; taken {
				return fmt.Errorf("scheme '%s' claimed by transports '%s' and '%s'", scheme, other, t.Name)
			}
			schemes[scheme] = t.Name
		}
	}

	if c.Audit.Enabled && c.Audit.Type == "file" && c.Audit.Path == "" {
		return fmt.Errorf("audit.path is required for file auditing")
	}
	if c.Admin.SigningKey != "" && c.Admin.SigningKeyFile != "" {
		return fmt.Errorf("admin.signing_key and admin.signing_key_file are mutually exclusive")
	}
	return nil
}
