// Package config handles tenexd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// searchPathsFunc is indirected so tests can override the search order
// without touching the developer's real config files.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the config file search order. An explicit
// path (from -config) is checked first by FindConfig; this order applies
// only when no explicit path was given: ./config.yaml,
// ~/.config/tenex/config.yaml, /config/config.yaml (container convention),
// /etc/tenex/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tenex", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml")
	paths = append(paths, "/etc/tenex/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPathsFunc())
}

// Config holds all tenexd configuration.
type Config struct {
	Relays   RelaysConfig   `yaml:"relays"`
	Listen   ListenConfig   `yaml:"listen"`
	Socket   SocketConfig   `yaml:"socket"`
	Stream   StreamConfig   `yaml:"stream"`
	Identity IdentityConfig `yaml:"identity"`
	DataDir  string         `yaml:"data_dir"`
	LogLevel string         `yaml:"log_level"`
	LogFile  string         `yaml:"log_file"`
}

// RelaysConfig lists the relay URLs the worker connects to and bounds
// on outbound operation latency.
type RelaysConfig struct {
	URLs             []string `yaml:"urls"`
	ConnectTimeoutMS int      `yaml:"connect_timeout_ms"` // default 15000
	PublishTimeoutMS int      `yaml:"publish_timeout_ms"` // default 5000
}

// ConnectTimeout returns the configured connect timeout as a Duration.
func (r RelaysConfig) ConnectTimeout() time.Duration {
	if r.ConnectTimeoutMS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(r.ConnectTimeoutMS) * time.Millisecond
}

// PublishTimeout returns the configured publish timeout as a Duration.
func (r RelaysConfig) PublishTimeout() time.Duration {
	if r.PublishTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.PublishTimeoutMS) * time.Millisecond
}

// ListenConfig defines the OpenAI-compatible HTTP API settings.
type ListenConfig struct {
	Address string `yaml:"address"` // bind address, "" = all interfaces
	Port    int    `yaml:"port"`    // default 4141
}

// SocketConfig defines the JSON-RPC Unix socket settings.
type SocketConfig struct {
	Path string `yaml:"path"` // default "<data_dir>/tenex-cli.sock"
}

// StreamConfig defines the local LLM streaming-chunk ingest socket: the
// side channel agent runners use to forward token-level deltas into the
// daemon, independent of the Nostr relay connection (§3.3's "streaming
// chunks" ephemeral runtime state).
type StreamConfig struct {
	Path string `yaml:"path"` // default "<data_dir>/tenex-stream.sock"
}

// IdentityConfig names where the signing key comes from. Credential
// storage and password-derived decryption are pre-core concerns (spec
// §1); tenexd only accepts an already-decrypted hex private key, either
// inline (for local/dev use) or via an environment variable reference.
type IdentityConfig struct {
	PrivateKeyHex string `yaml:"private_key_hex"`
	PrivateKeyEnv string `yaml:"private_key_env"`
}

// applyDefaults fills in zero-value fields with sensible defaults so
// callers can read any field without additional checks.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 4141
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Socket.Path == "" {
		c.Socket.Path = filepath.Join(c.DataDir, "tenex-cli.sock")
	}
	if c.Stream.Path == "" {
		c.Stream.Path = filepath.Join(c.DataDir, "tenex-stream.sock")
	}
	if len(c.Relays.URLs) == 0 {
		c.Relays.URLs = []string{"wss://tenex.chat"}
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	for _, url := range c.Relays.URLs {
		if url == "" {
			return fmt.Errorf("relays.urls contains an empty entry")
		}
	}
	return nil
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${DATA_DIR}) for container
	// deployments; the recommended approach is still plain values.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// ResolvePrivateKey returns the configured private key hex, preferring an
// environment variable reference over an inline value when both are set.
func (c IdentityConfig) ResolvePrivateKey() (string, error) {
	if c.PrivateKeyEnv != "" {
		v := os.Getenv(c.PrivateKeyEnv)
		if v == "" {
			return "", fmt.Errorf("environment variable %s is not set", c.PrivateKeyEnv)
		}
		return v, nil
	}
	if c.PrivateKeyHex != "" {
		return c.PrivateKeyHex, nil
	}
	return "", fmt.Errorf("no identity configured (set identity.private_key_hex or identity.private_key_env)")
}

// Default returns a default configuration suitable for local development.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
