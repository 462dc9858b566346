// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package vaultstore

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/javari-foundation/vault/lib/clock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "vault.db"),
		PoolSize: 1,
		Clock:    clock.Fake(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)),
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testParams(name, envelope string) UpsertParams {
	return UpsertParams{
		Name:           name,
		EncryptedValue: envelope,
		Fingerprint:    "abcdef123456",
		Category:       "ai",
		UpdatedBy:      "test-operator",
		MaskedValue:    "sk-tes***(24)",
	}
}

func TestUpsertSecret_VersionMonotonicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertSecret(ctx, testParams("API_KEY", "envelope-1"))
	if err != nil {
		t.Fatalf("first UpsertSecret() error: %v", err)
	}
	if first.RotationVersion != 1 || first.WasUpdate {
		t.Errorf("first write = {version:%d update:%v}, want {1 false}",
			first.RotationVersion, first.WasUpdate)
	}

	second, err := store.UpsertSecret(ctx, testParams("API_KEY", "envelope-2"))
	if err != nil {
		t.Fatalf("second UpsertSecret() error: %v", err)
	}
	if second.RotationVersion != 2 || !second.WasUpdate {
		t.Errorf("second write = {version:%d update:%v}, want {2 true}",
			second.RotationVersion, second.WasUpdate)
	}

	// Exactly one audit row per successful write: write, then rotate.
	entries, err := store.AuditEntries(ctx, "API_KEY", 0)
	if err != nil {
		t.Fatalf("AuditEntries() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Action != ActionRotate || entries[0].RotationVersion != 2 {
		t.Errorf("newest audit row = {%s v%d}, want {rotate v2}",
			entries[0].Action, entries[0].RotationVersion)
	}
	if entries[1].Action != ActionWrite || entries[1].RotationVersion != 1 {
		t.Errorf("oldest audit row = {%s v%d}, want {write v1}",
			entries[1].Action, entries[1].RotationVersion)
	}
}

func TestUpsertSecret_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpsertSecret(ctx, testParams("", "env")); !errors.Is(err, ErrInvalid) {
		t.Errorf("UpsertSecret with empty name: error = %v, want ErrInvalid", err)
	}

	params := testParams("NAME", "")
	if _, err := store.UpsertSecret(ctx, params); !errors.Is(err, ErrInvalid) {
		t.Errorf("UpsertSecret with empty envelope: error = %v, want ErrInvalid", err)
	}

	params = testParams("NAME", "env")
	params.Category = "bogus"
	if _, err := store.UpsertSecret(ctx, params); !errors.Is(err, ErrInvalid) {
		t.Errorf("UpsertSecret with unknown category: error = %v, want ErrInvalid", err)
	}

	// Failed writes leave no audit rows behind.
	entries, err := store.AuditEntries(ctx, "", 0)
	if err != nil {
		t.Fatalf("AuditEntries() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("audit rows after failed writes = %d, want 0", len(entries))
	}
}

func TestUpsertSecret_DefaultCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	params := testParams("PLAIN", "env")
	params.Category = ""
	if _, err := store.UpsertSecret(ctx, params); err != nil {
		t.Fatalf("UpsertSecret() error: %v", err)
	}

	secrets, err := store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets() error: %v", err)
	}
	if len(secrets) != 1 || secrets[0].Category != "general" {
		t.Errorf("stored category = %q, want general", secrets[0].Category)
	}
}

func TestGetSecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.GetSecret(ctx, "MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret(missing) err = %v, want ErrNotFound", err)
	}

	if _, err := store.UpsertSecret(ctx, testParams("KEY", "the-envelope")); err != nil {
		t.Fatalf("UpsertSecret() error: %v", err)
	}
	envelope, rotationVersion, err := store.GetSecret(ctx, "KEY")
	if err != nil {
		t.Fatalf("GetSecret() error: %v", err)
	}
	if envelope != "the-envelope" || rotationVersion != 1 {
		t.Errorf("GetSecret() = %q, v%d", envelope, rotationVersion)
	}

	// Deactivated secrets disappear from the read path but keep
	// their row and history.
	if err := store.Deactivate(ctx, "KEY"); err != nil {
		t.Fatalf("Deactivate() error: %v", err)
	}
	if _, _, err := store.GetSecret(ctx, "KEY"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret(deactivated) err = %v, want ErrNotFound", err)
	}
	if err := store.Deactivate(ctx, "NEVER_EXISTED"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deactivate(missing) err = %v, want ErrNotFound", err)
	}
}

func TestIncrementAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpsertSecret(ctx, testParams("COUNTED", "env")); err != nil {
		t.Fatalf("UpsertSecret() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.IncrementAccess(ctx, "COUNTED"); err != nil {
			t.Fatalf("IncrementAccess() error: %v", err)
		}
	}
	// Missing names are a silent no-op.
	if err := store.IncrementAccess(ctx, "MISSING"); err != nil {
		t.Fatalf("IncrementAccess(missing) error: %v", err)
	}

	secrets, err := store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets() error: %v", err)
	}
	if len(secrets) != 1 || secrets[0].AccessCount != 3 {
		t.Errorf("access count = %d, want 3", secrets[0].AccessCount)
	}
}

func TestListSecrets_OmitsEnvelopes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.UpsertSecret(ctx, testParams("A", "envelope-a")); err != nil {
		t.Fatalf("UpsertSecret() error: %v", err)
	}
	secrets, err := store.ListSecrets(ctx)
	if err != nil {
		t.Fatalf("ListSecrets() error: %v", err)
	}
	if secrets[0].EncryptedValue != "" {
		t.Error("ListSecrets leaked an encrypted envelope")
	}
	if secrets[0].MaskedValue != "sk-tes***(24)" {
		t.Errorf("masked value = %q", secrets[0].MaskedValue)
	}
	if secrets[0].ValidationStatus != ValidationUnknown {
		t.Errorf("validation status = %q, want unknown", secrets[0].ValidationStatus)
	}
	if secrets[0].LastValidated != nil {
		t.Errorf("last validated = %v, want nil", secrets[0].LastValidated)
	}
}

func TestVerifyAuditChain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	names := []string{"ONE", "TWO", "ONE", "THREE"}
	for _, name := range names {
		if _, err := store.UpsertSecret(ctx, testParams(name, "env-"+name)); err != nil {
			t.Fatalf("UpsertSecret(%s) error: %v", name, err)
		}
	}

	verified, err := store.VerifyAuditChain(ctx)
	if err != nil {
		t.Fatalf("VerifyAuditChain() error: %v", err)
	}
	if verified != len(names) {
		t.Errorf("verified = %d, want %d", verified, len(names))
	}

	// Rewriting history breaks the chain.
	conn, err := store.pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take() error: %v", err)
	}
	err = sqlitex.Execute(conn,
		`UPDATE audit SET masked_value = 'forged' WHERE id = 2`, nil)
	store.pool.Put(conn)
	if err != nil {
		t.Fatalf("tampering with audit row: %v", err)
	}

	if _, err := store.VerifyAuditChain(ctx); err == nil {
		t.Error("VerifyAuditChain() succeeded on a tampered log, want error")
	}
}
