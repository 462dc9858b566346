// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  database_path: /var/javari/vault/secrets.db
client:
  store_url: http://127.0.0.1:8484
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.Store.ListenAddress != "127.0.0.1:8484" {
		t.Errorf("ListenAddress = %q, want default", cfg.Store.ListenAddress)
	}
	if cfg.Client.CacheTTL.Std() != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m default", cfg.Client.CacheTTL)
	}
	if cfg.Client.RequestTimeout.Std() != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s default", cfg.Client.RequestTimeout)
	}

	if err := cfg.ValidateStore(); err != nil {
		t.Errorf("ValidateStore() error: %v", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		t.Errorf("ValidateClient() error: %v", err)
	}
}

func TestLoadFile_Overrides(t *testing.T) {
	path := writeConfig(t, `
store:
  listen_address: ":9000"
  database_path: /tmp/x.db
  shutdown_timeout: 3s
client:
  store_url: https://vault.internal
  request_timeout: 2s
  cache_ttl: 30s
  warm_manifest: /etc/javari/warm.jsonc
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Store.ListenAddress != ":9000" {
		t.Errorf("ListenAddress = %q", cfg.Store.ListenAddress)
	}
	if cfg.Store.ShutdownTimeout.Std() != 3*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Store.ShutdownTimeout)
	}
	if cfg.Client.CacheTTL.Std() != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.Client.CacheTTL)
	}
	if cfg.Client.WarmManifest != "/etc/javari/warm.jsonc" {
		t.Errorf("WarmManifest = %q", cfg.Client.WarmManifest)
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateStore(); err == nil {
		t.Error("ValidateStore() with no database_path succeeded, want error")
	}
	if err := cfg.ValidateClient(); err == nil {
		t.Error("ValidateClient() with no store_url succeeded, want error")
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")
	os.Unsetenv(EnvVar)
	if _, err := Load(); err == nil {
		t.Error("Load() with unset VAULT_CONFIG succeeded, want error")
	}
}
