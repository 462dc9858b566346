// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/javari-foundation/vault/lib/clock"
	"github.com/javari-foundation/vault/lib/envelope"
	"github.com/javari-foundation/vault/lib/storeclient"
)

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	mutex       sync.Mutex
	envelopes   map[string]string
	versions    map[string]int64
	fetchCalls  int
	upsertCalls int
	incremented []string
	fetchError  error
	upsertError error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		envelopes: make(map[string]string),
		versions:  make(map[string]int64),
	}
}

func (store *fakeStore) Fetch(ctx context.Context, name string) (*storeclient.FetchResponse, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.fetchCalls++
	if store.fetchError != nil {
		return nil, store.fetchError
	}
	sealed, ok := store.envelopes[name]
	if !ok {
		return nil, fmt.Errorf("fetch %q: %w", name, storeclient.ErrNotFound)
	}
	return &storeclient.FetchResponse{
		Name:            name,
		EncryptedValue:  sealed,
		RotationVersion: store.versions[name],
	}, nil
}

func (store *fakeStore) IncrementAccess(ctx context.Context, name string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.incremented = append(store.incremented, name)
	return nil
}

func (store *fakeStore) Upsert(ctx context.Context, request storeclient.UpsertRequest) (*storeclient.UpsertResponse, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.upsertCalls++
	if store.upsertError != nil {
		return nil, store.upsertError
	}
	store.envelopes[request.Name] = request.EncryptedValue
	store.versions[request.Name]++
	return &storeclient.UpsertResponse{
		Name:            request.Name,
		RotationVersion: store.versions[request.Name],
		WasUpdate:       store.versions[request.Name] > 1,
	}, nil
}

func (store *fakeStore) fetchCount() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.fetchCalls
}

var testCipher = func() *envelope.Cipher {
	cipher, err := envelope.New("test-signing-secret", "test-project-ref")
	if err != nil {
		panic(err)
	}
	return cipher
}()

// seal encrypts plaintext into the fake store under name.
func seal(t *testing.T, store *fakeStore, name, plaintext string) {
	t.Helper()
	sealed, err := testCipher.Encrypt([]byte(plaintext))
	if err != nil {
		t.Fatalf("sealing %q: %v", name, err)
	}
	store.mutex.Lock()
	store.envelopes[name] = sealed
	store.versions[name] = 1
	store.mutex.Unlock()
}

type clientOption func(*Config)

func withLegacy(env map[string]string) clientOption {
	return func(config *Config) {
		config.LegacyLookup = func(name string) (string, bool) {
			value, ok := env[name]
			return value, ok
		}
	}
}

func withClock(clk clock.Clock) clientOption {
	return func(config *Config) { config.Clock = clk }
}

func newTestClient(t *testing.T, store *fakeStore, options ...clientOption) *Client {
	t.Helper()
	config := Config{
		Store:        store,
		Cipher:       testCipher,
		Logger:       slog.New(slog.DiscardHandler),
		LegacyLookup: func(string) (string, bool) { return "", false },
		UpdatedBy:    "test",
	}
	for _, option := range options {
		option(&config)
	}
	client, err := New(config)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return client
}

func TestGet_VaultThenCache(t *testing.T) {
	store := newFakeStore()
	seal(t, store, "OPENAI_API_KEY", "sk-test-value-1234567890")
	client := newTestClient(t, store)
	ctx := context.Background()

	value, err := client.Get(ctx, "OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if value != "sk-test-value-1234567890" {
		t.Errorf("Get() = %q", value)
	}
	if store.fetchCount() != 1 {
		t.Errorf("fetch calls = %d, want 1", store.fetchCount())
	}

	// Second read is served from cache without touching the store.
	value, err = client.Get(ctx, "OPENAI_API_KEY")
	if err != nil {
		t.Fatalf("cached Get() error: %v", err)
	}
	if value != "sk-test-value-1234567890" {
		t.Errorf("cached Get() = %q", value)
	}
	if store.fetchCount() != 1 {
		t.Errorf("fetch calls after cached read = %d, want 1", store.fetchCount())
	}
}

func TestGet_CacheExpiry(t *testing.T) {
	store := newFakeStore()
	seal(t, store, "KEY", "value")
	fake := clock.Fake(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	client := newTestClient(t, store, withClock(fake))
	ctx := context.Background()

	if _, err := client.Get(ctx, "KEY"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	fake.Advance(DefaultCacheTTL + time.Second)
	if _, ok := client.GetCached("KEY"); ok {
		t.Error("GetCached() hit after TTL expiry")
	}
	if _, err := client.Get(ctx, "KEY"); err != nil {
		t.Fatalf("Get() after expiry error: %v", err)
	}
	if store.fetchCount() != 2 {
		t.Errorf("fetch calls = %d, want 2 after expiry", store.fetchCount())
	}
}

func TestGet_BypassCache(t *testing.T) {
	store := newFakeStore()
	seal(t, store, "KEY", "old")
	client := newTestClient(t, store)
	ctx := context.Background()

	if _, err := client.Get(ctx, "KEY"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	seal(t, store, "KEY", "new")

	value, err := client.Get(ctx, "KEY", BypassCache())
	if err != nil {
		t.Fatalf("Get(BypassCache) error: %v", err)
	}
	if value != "new" {
		t.Errorf("Get(BypassCache) = %q, want refreshed value", value)
	}
	// The refreshed value replaces the cached one.
	if cached, _ := client.GetCached("KEY"); cached != "new" {
		t.Errorf("GetCached() = %q after bypass, want %q", cached, "new")
	}
}

func TestGet_LegacyFallback(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store, withLegacy(map[string]string{
		"LEGACY_ONLY": "from-environment",
	}))
	ctx := context.Background()

	value, err := client.Get(ctx, "LEGACY_ONLY")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if value != "from-environment" {
		t.Errorf("Get() = %q, want legacy value", value)
	}

	// The legacy value enters the cache like any other resolution, so
	// repeat reads stop hitting the store until the TTL lapses.
	if cached, ok := client.GetCached("LEGACY_ONLY"); !ok || cached != "from-environment" {
		t.Errorf("GetCached(LEGACY_ONLY) = %q, %v; want cached legacy value", cached, ok)
	}
	if _, err := client.Get(ctx, "LEGACY_ONLY"); err != nil {
		t.Fatalf("second Get() error: %v", err)
	}
	if store.fetchCount() != 1 {
		t.Errorf("fetch calls = %d, want 1; legacy hit should be served from cache", store.fetchCount())
	}
}

func TestGet_MissingEverywhereIsEmptyNotError(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)

	value, err := client.Get(context.Background(), "NOWHERE")
	if err != nil {
		t.Fatalf("Get(missing) error: %v, want nil", err)
	}
	if value != "" {
		t.Errorf("Get(missing) = %q, want empty string", value)
	}
}

func TestGet_TransportErrorFallsBackToLegacy(t *testing.T) {
	store := newFakeStore()
	store.fetchError = errors.New("connection refused")
	client := newTestClient(t, store, withLegacy(map[string]string{
		"KEY": "legacy-value",
	}))

	value, err := client.Get(context.Background(), "KEY")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if value != "legacy-value" {
		t.Errorf("Get() = %q, want legacy fallback on transport error", value)
	}
}

func TestGet_DecryptFailureIsHardError(t *testing.T) {
	store := newFakeStore()
	// An envelope sealed under different bootstrap material.
	other, err := envelope.New("other-secret", "other-ref")
	if err != nil {
		t.Fatalf("creating cipher: %v", err)
	}
	sealed, err := other.Encrypt([]byte("value"))
	if err != nil {
		t.Fatalf("sealing: %v", err)
	}
	store.envelopes["KEY"] = sealed
	store.versions["KEY"] = 1

	// Legacy knows the name too; the crypto failure must win.
	client := newTestClient(t, store, withLegacy(map[string]string{
		"KEY": "must-not-be-served",
	}))

	value, err := client.Get(context.Background(), "KEY")
	if !errors.Is(err, envelope.ErrAuthentication) {
		t.Errorf("Get() err = %v, want ErrAuthentication", err)
	}
	if value != "" {
		t.Errorf("Get() = %q on decrypt failure, want empty", value)
	}
}

func TestSet_RoundTrip(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	result, err := client.Set(ctx, "NEW_KEY", "plaintext-value", SetOptions{Category: "ai"})
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if !result.OK || result.RotationVersion != 1 || result.WasUpdate {
		t.Errorf("Set() = %+v", result)
	}
	if result.Fingerprint != envelope.Fingerprint([]byte("plaintext-value")) {
		t.Errorf("fingerprint = %q", result.Fingerprint)
	}

	value, err := client.Get(ctx, "NEW_KEY")
	if err != nil {
		t.Fatalf("Get() after Set() error: %v", err)
	}
	if value != "plaintext-value" {
		t.Errorf("Get() = %q after Set()", value)
	}
}

func TestSet_InvalidatesCache(t *testing.T) {
	store := newFakeStore()
	seal(t, store, "KEY", "old")
	client := newTestClient(t, store)
	ctx := context.Background()

	if _, err := client.Get(ctx, "KEY"); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if _, err := client.Set(ctx, "KEY", "new", SetOptions{}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, ok := client.GetCached("KEY"); ok {
		t.Error("cache still holds the pre-rotation value after Set()")
	}
	value, err := client.Get(ctx, "KEY")
	if err != nil {
		t.Fatalf("Get() after rotation error: %v", err)
	}
	if value != "new" {
		t.Errorf("Get() = %q after rotation, want %q", value, "new")
	}
}

func TestSet_StoreFailureIsStructured(t *testing.T) {
	store := newFakeStore()
	store.upsertError = errors.New("database locked")
	client := newTestClient(t, store)

	result, err := client.Set(context.Background(), "KEY", "value", SetOptions{})
	if err != nil {
		t.Fatalf("Set() returned hard error for store failure: %v", err)
	}
	if result.OK || result.Error == "" || result.Name != "KEY" {
		t.Errorf("Set() = %+v, want structured failure", result)
	}
}

func TestSet_HardErrors(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	if _, err := client.Set(ctx, "", "value", SetOptions{}); err == nil {
		t.Error("Set() with empty name succeeded, want error")
	}
	if _, err := client.Set(ctx, "KEY", "", SetOptions{}); err == nil {
		t.Error("Set() with empty value succeeded, want error")
	}
	if _, err := client.Set(ctx, "KEY", "value", SetOptions{Category: "bogus"}); err == nil {
		t.Error("Set() with unknown category succeeded, want error")
	}
	if store.upsertCalls != 0 {
		t.Errorf("upsert calls = %d, want 0 after validation failures", store.upsertCalls)
	}
}

func TestSetBatch_MixedResults(t *testing.T) {
	store := newFakeStore()
	client := newTestClient(t, store)

	results := client.SetBatch(context.Background(), []SetItem{
		{Name: "GOOD_ONE", Plaintext: "value-1"},
		{Name: "", Plaintext: "value-2"},
		{Name: "GOOD_TWO", Plaintext: "value-3", Options: SetOptions{Category: "payments"}},
	})
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].OK || results[0].RotationVersion != 1 {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].OK || results[1].Error == "" {
		t.Errorf("results[1] = %+v, want structured failure", results[1])
	}
	if !results[2].OK {
		t.Errorf("results[2] = %+v", results[2])
	}
}

func TestWarm(t *testing.T) {
	store := newFakeStore()
	seal(t, store, "IN_VAULT_A", "a")
	seal(t, store, "IN_VAULT_B", "b")
	client := newTestClient(t, store, withLegacy(map[string]string{
		"LEGACY_ONLY": "legacy",
	}))

	report := client.Warm(context.Background(), []string{
		"IN_VAULT_A", "IN_VAULT_B", "LEGACY_ONLY", "NOWHERE",
	})
	if len(report.FromVault) != 2 {
		t.Errorf("FromVault = %v, want 2 names", report.FromVault)
	}
	if len(report.FromLegacy) != 1 || report.FromLegacy[0] != "LEGACY_ONLY" {
		t.Errorf("FromLegacy = %v", report.FromLegacy)
	}
	if len(report.Missing) != 1 || report.Missing[0] != "NOWHERE" {
		t.Errorf("Missing = %v", report.Missing)
	}
	if report.CacheSize != 3 {
		t.Errorf("CacheSize = %d, want 3", report.CacheSize)
	}

	// Cache-only lookups now succeed for everything that resolved,
	// legacy names included.
	if _, ok := client.GetCached("IN_VAULT_A"); !ok {
		t.Error("GetCached(IN_VAULT_A) missed after Warm()")
	}
	if _, ok := client.GetCached("LEGACY_ONLY"); !ok {
		t.Error("GetCached(LEGACY_ONLY) missed after Warm()")
	}
}
