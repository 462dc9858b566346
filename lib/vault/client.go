// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/javari-foundation/vault/lib/clock"
	"github.com/javari-foundation/vault/lib/envelope"
	"github.com/javari-foundation/vault/lib/storeclient"
	"github.com/javari-foundation/vault/lib/vaultstore"
)

// DefaultCacheTTL is the plaintext cache lifetime when the
// configuration does not override it.
const DefaultCacheTTL = 5 * time.Minute

// setBatchPause is the delay between sequential writes in SetBatch,
// keeping a bulk import from hammering the store.
const setBatchPause = 50 * time.Millisecond

// Store is the privileged store surface the client needs. Satisfied by
// *storeclient.Client; tests substitute a fake.
type Store interface {
	Fetch(ctx context.Context, name string) (*storeclient.FetchResponse, error)
	IncrementAccess(ctx context.Context, name string) error
	Upsert(ctx context.Context, request storeclient.UpsertRequest) (*storeclient.UpsertResponse, error)
}

// Client is the secret authority client. Construct one with New and
// inject it; it is safe for concurrent use.
type Client struct {
	store        Store
	cipher       *envelope.Cipher
	cache        *ttlCache
	clock        clock.Clock
	logger       *slog.Logger
	legacyLookup func(string) (string, bool)
	updatedBy    string
}

// Config carries the dependencies for New.
type Config struct {
	// Store is the privileged store client. Required.
	Store Store

	// Cipher seals and opens envelopes. Required.
	Cipher *envelope.Cipher

	// CacheTTL bounds how long a decrypted value is served without
	// re-fetching. Zero means DefaultCacheTTL.
	CacheTTL time.Duration

	// LegacyLookup resolves names the vault does not know. Defaults
	// to os.LookupEnv; tests substitute a map lookup.
	LegacyLookup func(string) (string, bool)

	// UpdatedBy is the actor recorded on writes from this client.
	// Defaults to the process hostname.
	UpdatedBy string

	// Clock defaults to clock.Real(). Logger defaults to slog.Default().
	Clock  clock.Clock
	Logger *slog.Logger
}

// New validates the configuration and returns a Client.
func New(config Config) (*Client, error) {
	if config.Store == nil {
		return nil, errors.New("vault: store client is required")
	}
	if config.Cipher == nil {
		return nil, errors.New("vault: cipher is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.LegacyLookup == nil {
		config.LegacyLookup = os.LookupEnv
	}
	if config.UpdatedBy == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		config.UpdatedBy = hostname
	}
	return &Client{
		store:        config.Store,
		cipher:       config.Cipher,
		cache:        newTTLCache(config.CacheTTL, config.Clock),
		clock:        config.Clock,
		logger:       config.Logger,
		legacyLookup: config.LegacyLookup,
		updatedBy:    config.UpdatedBy,
	}, nil
}

// GetOption adjusts a single Get call.
type GetOption func(*getOptions)

type getOptions struct {
	bypassCache bool
}

// BypassCache forces a fresh fetch and decrypt even when the cache
// holds an unexpired value. The fresh value replaces the cached one.
func BypassCache() GetOption {
	return func(options *getOptions) { options.bypassCache = true }
}

// source identifies where a resolved value came from.
type source int

const (
	sourceCache source = iota
	sourceVault
	sourceLegacy
	sourceMissing
)

// Get resolves a secret by name: cache, then the vault, then the
// legacy process environment. A name nothing knows resolves to the
// empty string with an error logged, never an error returned — callers
// of the old environment API expect lookups that cannot fail. The only
// hard errors are crypto failures on an envelope the vault did return.
func (client *Client) Get(ctx context.Context, name string, options ...GetOption) (string, error) {
	value, _, err := client.resolve(ctx, name, options...)
	return value, err
}

// GetCached returns the cached value for name without any I/O. The
// environment shim's synchronous lookups use this exclusively.
func (client *Client) GetCached(name string) (string, bool) {
	return client.cache.get(name)
}

// resolve is the full read path. It reports the source so Warm can
// account for where each name was satisfied.
func (client *Client) resolve(ctx context.Context, name string, options ...GetOption) (string, source, error) {
	if name == "" {
		return "", sourceMissing, errors.New("vault: secret name is empty")
	}
	var opts getOptions
	for _, option := range options {
		option(&opts)
	}

	if !opts.bypassCache {
		if value, ok := client.cache.get(name); ok {
			return value, sourceCache, nil
		}
	}

	fetched, err := client.store.Fetch(ctx, name)
	switch {
	case err == nil:
		plaintext, err := client.cipher.Decrypt(fetched.EncryptedValue)
		if err != nil {
			// A stored envelope that will not open means
			// tampering, corruption, or rotated bootstrap
			// material. Falling back would mask it.
			client.logger.Error("envelope decryption failed",
				"secret", name, "rotation_version", fetched.RotationVersion, "error", err)
			return "", sourceMissing, fmt.Errorf("vault: decrypting %q: %w", name, err)
		}
		value := string(plaintext)
		client.cache.put(name, value)
		go client.recordAccess(name)
		return value, sourceVault, nil

	case errors.Is(err, storeclient.ErrNotFound):
		// Fall through to the legacy environment.

	default:
		client.logger.Warn("vault store unreachable, trying legacy environment",
			"secret", name, "error", err)
	}

	if value, ok := client.legacyLookup(name); ok {
		// Cached with the same TTL as vault-sourced values, so an
		// unmigrated name costs one store round trip per TTL window,
		// not one per read.
		client.logger.Warn("secret served from legacy environment", "secret", name)
		client.cache.put(name, value)
		return value, sourceLegacy, nil
	}

	client.logger.Error("secret not found in vault or legacy environment", "secret", name)
	return "", sourceMissing, nil
}

// recordAccess bumps the store-side access counter. Telemetry only:
// runs detached from the caller's context with its own deadline, and
// failures are logged at debug.
func (client *Client) recordAccess(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.store.IncrementAccess(ctx, name); err != nil {
		client.logger.Debug("access count update failed", "secret", name, "error", err)
	}
}

// WarmReport summarizes a Warm pass. Failed holds names whose envelope
// fetch or decrypt errored; Missing holds names nothing knows.
type WarmReport struct {
	FromVault  []string
	FromLegacy []string
	Missing    []string
	Failed     []string
	CacheSize  int
}

// Warm resolves every name concurrently and populates the cache, so
// that synchronous cache-only lookups succeed afterwards. Call it
// before serving traffic; skipping it leaves the environment shim
// answering from a cold cache.
func (client *Client) Warm(ctx context.Context, names []string) WarmReport {
	var (
		mutex  sync.Mutex
		report WarmReport
		group  sync.WaitGroup
	)
	for _, name := range names {
		group.Add(1)
		go func(name string) {
			defer group.Done()
			_, from, err := client.resolve(ctx, name)
			mutex.Lock()
			defer mutex.Unlock()
			switch {
			case err != nil:
				report.Failed = append(report.Failed, name)
			case from == sourceVault || from == sourceCache:
				report.FromVault = append(report.FromVault, name)
			case from == sourceLegacy:
				report.FromLegacy = append(report.FromLegacy, name)
			default:
				report.Missing = append(report.Missing, name)
			}
		}(name)
	}
	group.Wait()

	report.CacheSize = client.cache.size()
	client.logger.Info("vault cache warmed",
		"requested", len(names),
		"from_vault", len(report.FromVault),
		"from_legacy", len(report.FromLegacy),
		"missing", len(report.Missing),
		"failed", len(report.Failed),
		"cache_size", report.CacheSize)
	return report
}

// CacheSize returns the number of unexpired cached values.
func (client *Client) CacheSize() int {
	return client.cache.size()
}

// CachedNames returns the sorted names currently cached. Names only.
func (client *Client) CachedNames() []string {
	return client.cache.names()
}

// SetOptions carries the optional write metadata.
type SetOptions struct {
	// Category classifies the secret. Empty means "general". Must be
	// one of vaultstore.Categories otherwise.
	Category string

	// Notes is free-form operator text stored with the secret.
	Notes string
}

// SetResult reports one write. A store-side failure produces
// OK == false with Error populated rather than a Go error, so batch
// imports can report per-secret outcomes.
type SetResult struct {
	Name            string
	OK              bool
	RotationVersion int64
	WasUpdate       bool
	Fingerprint     string
	MaskedValue     string
	Error           string
}

// Set encrypts plaintext and writes it through the store, which
// assigns the rotation version atomically and records the audit row.
// Validation and encryption failures are hard errors; a store failure
// is a structured result with OK == false.
func (client *Client) Set(ctx context.Context, name, plaintext string, options SetOptions) (SetResult, error) {
	if name == "" {
		return SetResult{}, errors.New("vault: secret name is empty")
	}
	if plaintext == "" {
		return SetResult{}, fmt.Errorf("vault: refusing to store empty value for %q", name)
	}
	if options.Category != "" && !vaultstore.ValidCategory(options.Category) {
		return SetResult{}, fmt.Errorf("vault: unknown category %q", options.Category)
	}

	sealed, err := client.cipher.Encrypt([]byte(plaintext))
	if err != nil {
		return SetResult{}, fmt.Errorf("vault: encrypting %q: %w", name, err)
	}
	fingerprint := envelope.Fingerprint([]byte(plaintext))
	masked := envelope.Mask(plaintext)

	response, err := client.store.Upsert(ctx, storeclient.UpsertRequest{
		Name:           name,
		EncryptedValue: sealed,
		Fingerprint:    fingerprint,
		Category:       options.Category,
		UpdatedBy:      client.updatedBy,
		Notes:          options.Notes,
		MaskedValue:    masked,
	})
	if err != nil {
		client.logger.Error("secret write failed", "secret", name, "error", err)
		return SetResult{Name: name, Error: err.Error()}, nil
	}

	client.cache.invalidate(name)
	client.logger.Info("secret written",
		"secret", name,
		"rotation_version", response.RotationVersion,
		"was_update", response.WasUpdate,
		"fingerprint", fingerprint)
	return SetResult{
		Name:            name,
		OK:              true,
		RotationVersion: response.RotationVersion,
		WasUpdate:       response.WasUpdate,
		Fingerprint:     fingerprint,
		MaskedValue:     masked,
	}, nil
}

// SetItem is one entry of a batch write.
type SetItem struct {
	Name      string
	Plaintext string
	Options   SetOptions
}

// SetBatch writes items sequentially with a short pause between them.
// Each item gets its own SetResult; a hard error on one item (bad
// name, crypto failure) becomes a structured failure so the rest of
// the batch still runs.
func (client *Client) SetBatch(ctx context.Context, items []SetItem) []SetResult {
	results := make([]SetResult, 0, len(items))
	for index, item := range items {
		if index > 0 {
			client.clock.Sleep(setBatchPause)
		}
		result, err := client.Set(ctx, item.Name, item.Plaintext, item.Options)
		if err != nil {
			result = SetResult{Name: item.Name, Error: err.Error()}
		}
		results = append(results, result)
	}
	return results
}
