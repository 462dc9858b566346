// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package envshim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/javari-foundation/vault/lib/envelope"
	"github.com/javari-foundation/vault/lib/storeclient"
	"github.com/javari-foundation/vault/lib/vault"
)

// memoryStore is a minimal vault.Store for shim tests.
type memoryStore struct {
	mutex     sync.Mutex
	envelopes map[string]string
}

func (store *memoryStore) Fetch(ctx context.Context, name string) (*storeclient.FetchResponse, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	sealed, ok := store.envelopes[name]
	if !ok {
		return nil, fmt.Errorf("fetch %q: %w", name, storeclient.ErrNotFound)
	}
	return &storeclient.FetchResponse{Name: name, EncryptedValue: sealed, RotationVersion: 1}, nil
}

func (store *memoryStore) IncrementAccess(ctx context.Context, name string) error {
	return nil
}

func (store *memoryStore) Upsert(ctx context.Context, request storeclient.UpsertRequest) (*storeclient.UpsertResponse, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.envelopes[request.Name] = request.EncryptedValue
	return &storeclient.UpsertResponse{Name: request.Name, RotationVersion: 1}, nil
}

var testCipher = func() *envelope.Cipher {
	cipher, err := envelope.New("shim-test-secret", "shim-test-ref")
	if err != nil {
		panic(err)
	}
	return cipher
}()

// newShimClient builds a vault client whose store holds the given
// plaintexts and whose legacy lookup is empty.
func newShimClient(t *testing.T, secrets map[string]string) *vault.Client {
	t.Helper()
	store := &memoryStore{envelopes: make(map[string]string)}
	for name, plaintext := range secrets {
		sealed, err := testCipher.Encrypt([]byte(plaintext))
		if err != nil {
			t.Fatalf("sealing %q: %v", name, err)
		}
		store.envelopes[name] = sealed
	}
	client, err := vault.New(vault.Config{
		Store:        store,
		Cipher:       testCipher,
		Logger:       slog.New(slog.DiscardHandler),
		LegacyLookup: func(string) (string, bool) { return "", false },
		UpdatedBy:    "shim-test",
	})
	if err != nil {
		t.Fatalf("vault.New() error: %v", err)
	}
	return client
}

func setup(t *testing.T) {
	t.Helper()
	Uninstall()
	SetLogger(slog.New(slog.DiscardHandler))
	t.Cleanup(Uninstall)
}

func TestIsBootstrap(t *testing.T) {
	for _, name := range []string{
		"JAVARI_SIGNING_SECRET", "JAVARI_PROJECT_REF",
		"VAULT_SERVICE_TOKEN", "VAULT_STORE_URL", "VAULT_CONFIG",
		"PATH", "HOME", "PUBLIC_SITE_URL", "DEPLOY_TARGET", "LC_ALL",
	} {
		if !IsBootstrap(name) {
			t.Errorf("IsBootstrap(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"OPENAI_API_KEY", "STRIPE_SECRET_KEY", "PUBLICX"} {
		if IsBootstrap(name) {
			t.Errorf("IsBootstrap(%q) = true, want false", name)
		}
	}
}

func TestBootstrapPassthrough(t *testing.T) {
	setup(t)
	if err := Install(newShimClient(t, nil)); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	t.Setenv("PUBLIC_SITE_URL", "https://example.com")
	if got := Getenv("PUBLIC_SITE_URL"); got != "https://example.com" {
		t.Errorf("Getenv(PUBLIC_SITE_URL) = %q", got)
	}
	// Bootstrap lookups never count as cold reads.
	if status := CurrentStatus(); status.ColdReads != 0 {
		t.Errorf("cold reads = %d after bootstrap lookup, want 0", status.ColdReads)
	}
}

func TestColdReadBeforeWarm(t *testing.T) {
	setup(t)
	if err := Install(newShimClient(t, map[string]string{"API_KEY": "vault-value"})); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	// The process environment still carries the old value; a lookup
	// before Warm serves it but is counted as a cold read.
	t.Setenv("API_KEY", "stale-env-value")
	value, ok := LookupEnv("API_KEY")
	if !ok || value != "stale-env-value" {
		t.Errorf("LookupEnv() = %q, %v; want stale environment fallback", value, ok)
	}
	if status := CurrentStatus(); status.ColdReads != 1 {
		t.Errorf("cold reads = %d, want 1", status.ColdReads)
	}

	// A name neither the cache nor the environment knows is an empty
	// miss, also counted.
	if value, ok := LookupEnv("UNKNOWN_SECRET"); ok || value != "" {
		t.Errorf("LookupEnv(unknown) = %q, %v", value, ok)
	}
	if status := CurrentStatus(); status.ColdReads != 2 {
		t.Errorf("cold reads = %d, want 2", status.ColdReads)
	}
}

func TestWarmThenCachedLookup(t *testing.T) {
	setup(t)
	if err := Install(newShimClient(t, map[string]string{"API_KEY": "vault-value"})); err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	report, err := Warm(context.Background(), []string{"API_KEY"})
	if err != nil {
		t.Fatalf("Warm() error: %v", err)
	}
	if len(report.FromVault) != 1 || report.CacheSize != 1 {
		t.Errorf("Warm() report = %+v", report)
	}

	// Even with a stale environment value present, the cache wins.
	t.Setenv("API_KEY", "stale-env-value")
	value, ok := LookupEnv("API_KEY")
	if !ok || value != "vault-value" {
		t.Errorf("LookupEnv() = %q, %v; want cached vault value", value, ok)
	}
	status := CurrentStatus()
	if status.ColdReads != 0 {
		t.Errorf("cold reads = %d after warm lookup, want 0", status.ColdReads)
	}
	if !status.Installed || status.CacheSize != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestInstall_Idempotency(t *testing.T) {
	setup(t)
	first := newShimClient(t, nil)
	if err := Install(first); err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if err := Install(first); err != nil {
		t.Errorf("re-installing the same client errored: %v", err)
	}
	if err := Install(newShimClient(t, nil)); err == nil {
		t.Error("installing a different client succeeded, want error")
	}
	if err := Install(nil); err == nil {
		t.Error("installing nil succeeded, want error")
	}
}

func TestUninstalledPassthrough(t *testing.T) {
	setup(t)
	t.Setenv("SOME_VALUE", "plain")
	if got := Getenv("SOME_VALUE"); got != "plain" {
		t.Errorf("Getenv() = %q with no client installed", got)
	}
	if status := CurrentStatus(); status.Installed {
		t.Error("status reports installed with no client")
	}
}

func TestWarm_RequiresInstall(t *testing.T) {
	setup(t)
	if _, err := Warm(context.Background(), nil); err == nil {
		t.Error("Warm() with no client installed succeeded, want error")
	}
}
