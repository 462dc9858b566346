// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable pointing at the config file.
const EnvVar = "VAULT_CONFIG"

// Duration wraps time.Duration so YAML values can use Go duration
// strings ("10s", "5m") instead of raw nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for vault binaries. One file
// serves both the store service and the CLI; each reads its own
// section.
type Config struct {
	// Store configures the secret store service.
	Store StoreConfig `yaml:"store"`

	// Client configures vault clients (the CLI and any embedding
	// process).
	Client ClientConfig `yaml:"client"`
}

// StoreConfig configures the secret store service.
type StoreConfig struct {
	// ListenAddress is the TCP address the RPC surface binds to.
	// Default: "127.0.0.1:8484".
	ListenAddress string `yaml:"listen_address"`

	// DatabasePath is the SQLite database file holding the secrets
	// and audit tables. Required for the store service.
	DatabasePath string `yaml:"database_path"`

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// ClientConfig configures vault clients.
type ClientConfig struct {
	// StoreURL is the base URL of the store service. Required for
	// clients.
	StoreURL string `yaml:"store_url"`

	// RequestTimeout bounds every store RPC. Default: 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// CacheTTL is the in-process plaintext cache lifetime.
	// Default: 5m.
	CacheTTL Duration `yaml:"cache_ttl"`

	// WarmManifest is the path to the JSONC warm manifest listing
	// the keys pre-fetched at startup. Optional; without it the
	// built-in critical-key list is used.
	WarmManifest string `yaml:"warm_manifest"`
}

// Default returns the default configuration. Defaults exist to give
// every field a sensible zero value — the config file is still the
// single source of truth.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			ListenAddress:   "127.0.0.1:8484",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Client: ClientConfig{
			RequestTimeout: Duration(10 * time.Second),
			CacheTTL:       Duration(5 * time.Minute),
		},
	}
}

// Load loads configuration from the VAULT_CONFIG environment variable.
// There is no search path: if the variable is not set, Load fails.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your vault.yaml config file, or use --config", EnvVar)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults. Environment variables do not override file values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateStore checks the fields the store service requires.
func (c *Config) ValidateStore() error {
	var errs []error
	if c.Store.ListenAddress == "" {
		errs = append(errs, fmt.Errorf("store.listen_address is required"))
	}
	if c.Store.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("store.database_path is required"))
	}
	if c.Store.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store.shutdown_timeout must be positive"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ValidateClient checks the fields vault clients require.
func (c *Config) ValidateClient() error {
	var errs []error
	if c.Client.StoreURL == "" {
		errs = append(errs, fmt.Errorf("client.store_url is required"))
	}
	if c.Client.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("client.request_timeout must be positive"))
	}
	if c.Client.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("client.cache_ttl must be positive"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
