// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package envshim

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/javari-foundation/vault/lib/config"
	"github.com/javari-foundation/vault/lib/envelope"
	"github.com/javari-foundation/vault/lib/service"
	"github.com/javari-foundation/vault/lib/vault"
)

// bootstrapNames are the exact environment variables that must always
// come from the real process environment: the crypto trust anchor, the
// store's location and credential, and the ordinary non-secret shell
// variables every process expects.
var bootstrapNames = map[string]bool{
	envelope.SigningSecretEnv: true,
	envelope.ProjectRefEnv:    true,
	service.ServiceTokenEnv:   true,
	config.EnvVar:             true,
	"VAULT_STORE_URL":         true,
	"DATABASE_URL":            true,
	"HOME":                    true,
	"HOSTNAME":                true,
	"LANG":                    true,
	"PATH":                    true,
	"PWD":                     true,
	"SHELL":                   true,
	"TMPDIR":                  true,
	"TZ":                      true,
	"USER":                    true,
}

// bootstrapPrefixes extend the allow-list by prefix: deliberately
// public configuration and locale settings are not secrets.
var bootstrapPrefixes = []string{"PUBLIC_", "DEPLOY_", "LC_"}

// DefaultCriticalKeys are the secrets most deployments need before
// serving any traffic. Warm-up callers without a manifest use this
// list.
var DefaultCriticalKeys = []string{
	"OPENAI_API_KEY",
	"ANTHROPIC_API_KEY",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"SUPABASE_SERVICE_ROLE_KEY",
	"JWT_SIGNING_KEY",
	"CDN_API_TOKEN",
}

var (
	mutex     sync.Mutex
	installed *vault.Client
	logger    = slog.Default()
	coldReads atomic.Int64
)

// IsBootstrap reports whether name bypasses the vault entirely.
func IsBootstrap(name string) bool {
	if bootstrapNames[name] {
		return true
	}
	for _, prefix := range bootstrapPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Install routes non-bootstrap lookups through the given vault client.
// Installing the same client again is a no-op; installing a different
// client is an error, since two halves of a process silently reading
// different vaults is exactly the confusion the shim exists to prevent.
func Install(client *vault.Client) error {
	if client == nil {
		return fmt.Errorf("envshim: nil vault client")
	}
	mutex.Lock()
	defer mutex.Unlock()
	if installed != nil && installed != client {
		return fmt.Errorf("envshim: a different vault client is already installed")
	}
	installed = client
	return nil
}

// Uninstall removes the installed client and resets the cold-read
// counter. For tests.
func Uninstall() {
	mutex.Lock()
	defer mutex.Unlock()
	installed = nil
	coldReads.Store(0)
}

// SetLogger replaces the shim's logger. Defaults to slog.Default().
func SetLogger(replacement *slog.Logger) {
	mutex.Lock()
	defer mutex.Unlock()
	logger = replacement
}

func currentClient() (*vault.Client, *slog.Logger) {
	mutex.Lock()
	defer mutex.Unlock()
	return installed, logger
}

// Getenv is a drop-in replacement for os.Getenv: bootstrap names from
// the process environment, everything else from the vault cache. A
// missing name returns the empty string, like os.Getenv.
func Getenv(name string) string {
	value, _ := LookupEnv(name)
	return value
}

// LookupEnv is a drop-in replacement for os.LookupEnv. Non-bootstrap
// names are answered from the vault cache; a cache miss falls back to
// the process environment and is counted as a cold read.
func LookupEnv(name string) (string, bool) {
	if IsBootstrap(name) {
		return os.LookupEnv(name)
	}

	client, log := currentClient()
	if client == nil {
		return os.LookupEnv(name)
	}

	if value, ok := client.GetCached(name); ok {
		return value, true
	}

	// Cold read: the cache has no answer and this path cannot block
	// on the network. Serve the legacy environment if it has the
	// name, but make the miss visible either way.
	coldReads.Add(1)
	value, ok := os.LookupEnv(name)
	log.Error("cold secret read, cache not warmed",
		"secret", name, "served_from_environment", ok,
		"cold_reads", coldReads.Load())
	return value, ok
}

// Setenv passes straight through to os.Setenv. Writing a secret goes
// through vault.Client.Set; the shim only mediates reads.
func Setenv(name, value string) error {
	return os.Setenv(name, value)
}

// Warm populates the installed client's cache with the given names
// (DefaultCriticalKeys when names is empty) and returns the report.
func Warm(ctx context.Context, names []string) (vault.WarmReport, error) {
	client, _ := currentClient()
	if client == nil {
		return vault.WarmReport{}, fmt.Errorf("envshim: no vault client installed")
	}
	if len(names) == 0 {
		names = DefaultCriticalKeys
	}
	return client.Warm(ctx, names), nil
}

// Status describes the shim's current state for diagnostics.
type Status struct {
	Installed   bool     `json:"installed"`
	CacheSize   int      `json:"cache_size"`
	CachedNames []string `json:"cached_names"`
	ColdReads   int64    `json:"cold_reads"`
}

// CurrentStatus reports whether the shim is installed, what the cache
// holds (names only), and how many cold reads have happened.
func CurrentStatus() Status {
	client, _ := currentClient()
	status := Status{ColdReads: coldReads.Load()}
	if client == nil {
		return status
	}
	status.Installed = true
	status.CacheSize = client.CacheSize()
	status.CachedNames = client.CachedNames()
	return status
}
