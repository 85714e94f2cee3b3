// Package config loads the gridstore configuration: a YAML file, then
// GRIDSTORE_* environment overrides. Command-line flags are applied by the
// binaries on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/logging"
	"xdao.co/gridstore/resolver"
	"xdao.co/gridstore/storage/casconfig"
)

const EnvPrefix = "GRIDSTORE_"

type Config struct {
	// Network is the default network name or chain id.
	Network string `yaml:"network"`
	// RPC overrides endpoints per network name.
	RPC     map[string]string `yaml:"rpc,omitempty"`
	Gateway string            `yaml:"gateway"`
	Fetch   FetchConfig       `yaml:"fetch"`
	Chain   ChainConfig       `yaml:"chain"`
	Server  ServerConfig      `yaml:"server"`
	Log     LogConfig         `yaml:"log"`
	// Catalog replaces the embedded template catalog when set.
	Catalog string           `yaml:"catalog,omitempty"`
	Mirror  casconfig.Config `yaml:"mirror,omitempty"`
}

type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

type ChainConfig struct {
	RateLimit   float64       `yaml:"rate_limit"`
	Burst       int           `yaml:"burst"`
	ReceiptPoll time.Duration `yaml:"receipt_poll"`

	// ConfirmTimeout is how long an applied write blocks re-applying the
	// same value before it is treated as dropped.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Submit enables broadcasting presigned apply transactions.
	Submit bool `yaml:"submit"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	return Config{
		Network: chain.Mainnet.Name,
		Gateway: resolver.DefaultGateway,
		Fetch: FetchConfig{
			Timeout:   15 * time.Second,
			MaxBytes:  8 << 20,
			UserAgent: "gridstore/1.0",
		},
		Chain: ChainConfig{
			RateLimit:      20,
			ReceiptPoll:    2 * time.Second,
			ConfirmTimeout: 15 * time.Minute,
		},
		Server: ServerConfig{
			Listen:         ":8080",
			RequestTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv applies GRIDSTORE_NETWORK, GRIDSTORE_RPC_URL (for the selected
// network), GRIDSTORE_GATEWAY, GRIDSTORE_LISTEN, GRIDSTORE_LOG_LEVEL and
// GRIDSTORE_CATALOG.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("NETWORK"); ok {
		c.Network = v
	}
	if v, ok := get("RPC_URL"); ok {
		n, err := chain.Lookup(c.Network)
		if err != nil {
			return fmt.Errorf("config: %sRPC_URL: %w", EnvPrefix, err)
		}
		if c.RPC == nil {
			c.RPC = make(map[string]string)
		}
		c.RPC[n.Name] = v
	}
	if v, ok := get("GATEWAY"); ok {
		c.Gateway = v
	}
	if v, ok := get("LISTEN"); ok {
		c.Server.Listen = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("CATALOG"); ok {
		c.Catalog = v
	}
	return nil
}

func (c Config) Validate() error {
	if _, err := chain.Lookup(c.Network); err != nil {
		return fmt.Errorf("config: network: %w", err)
	}
	for name := range c.RPC {
		if _, err := chain.Lookup(name); err != nil {
			return fmt.Errorf("config: rpc: %w", err)
		}
	}
	if c.Fetch.MaxBytes < 0 {
		return errors.New("config: fetch.max_bytes must not be negative")
	}
	if c.Mirror.Enabled() {
		if err := c.Mirror.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultNetwork resolves Network.
func (c Config) DefaultNetwork() (chain.Network, error) { return chain.Lookup(c.Network) }

func (c Config) ChainConfig() chain.Config {
	rpc := make(map[string]string, len(c.RPC))
	for name, url := range c.RPC {
		if n, err := chain.Lookup(name); err == nil {
			rpc[n.Name] = url
		}
	}
	return chain.Config{
		RPC:         rpc,
		RateLimit:   c.Chain.RateLimit,
		Burst:       c.Chain.Burst,
		ReceiptPoll: c.Chain.ReceiptPoll,
	}
}

func (c Config) ResolverConfig() resolver.Config {
	return resolver.Config{
		Gateway:   c.Gateway,
		Timeout:   c.Fetch.Timeout,
		MaxBytes:  c.Fetch.MaxBytes,
		UserAgent: c.Fetch.UserAgent,
	}
}

func (c Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Development: c.Log.Development}
}
