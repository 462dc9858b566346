// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package vaultstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/javari-foundation/vault/lib/clock"
	"github.com/javari-foundation/vault/lib/sqlitepool"
)

// ErrNotFound is returned when no active secret exists under a name.
var ErrNotFound = errors.New("vaultstore: secret not found")

// ErrInvalid wraps rejections of the caller's parameters, as opposed
// to storage failures. The RPC layer maps it to a client error.
var ErrInvalid = errors.New("vaultstore: invalid parameters")

// Categories is the fixed category enumeration for secret records.
var Categories = []string{
	"ai", "payments", "infrastructure", "media",
	"data", "social", "analytics", "general",
}

// ValidCategory reports whether category is one of the fixed set.
func ValidCategory(category string) bool {
	for _, known := range Categories {
		if category == known {
			return true
		}
	}
	return false
}

// Validation status values. The vault stores these; it never computes
// them — an external validator owns the transitions.
const (
	ValidationUnknown = "unknown"
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"
)

// Secret is a stored secret record. EncryptedValue is the envelope
// string; the store never sees plaintext.
type Secret struct {
	Name             string
	EncryptedValue   string
	Fingerprint      string
	MaskedValue      string
	Category         string
	RotationVersion  int64
	UpdatedBy        string
	Notes            string
	IsActive         bool
	ValidationStatus string
	LastValidated    *time.Time
	AccessCount      int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UpsertParams carries one write. MaskedValue is precomputed by the
// client (which holds the plaintext); the store records it in the
// audit row without ever holding the value itself.
type UpsertParams struct {
	Name           string
	EncryptedValue string
	Fingerprint    string
	Category       string
	UpdatedBy      string
	Notes          string
	MaskedValue    string
}

// UpsertResult reports the outcome of an atomic write.
type UpsertResult struct {
	RotationVersion int64
	WasUpdate       bool
}

// Store is the SQLite-backed secret and audit storage.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Config holds the parameters for opening a store.
type Config struct {
	// Path is the SQLite database file. Required. ":memory:" with
	// PoolSize 1 works for tests.
	Path string

	// PoolSize is the connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides timestamps for secret and audit rows. Required.
	Clock clock.Clock

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS secrets (
	name              TEXT PRIMARY KEY,
	encrypted_value   TEXT NOT NULL,
	fingerprint       TEXT NOT NULL,
	masked_value      TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT 'general',
	rotation_version  INTEGER NOT NULL DEFAULT 1,
	updated_by        TEXT NOT NULL DEFAULT '',
	notes             TEXT NOT NULL DEFAULT '',
	is_active         INTEGER NOT NULL DEFAULT 1,
	validation_status TEXT NOT NULL DEFAULT 'unknown',
	last_validated    INTEGER,
	access_count      INTEGER NOT NULL DEFAULT 0,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audit (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	secret_name      TEXT NOT NULL,
	action           TEXT NOT NULL,
	actor            TEXT NOT NULL,
	category         TEXT NOT NULL,
	rotation_version INTEGER NOT NULL,
	fingerprint      TEXT NOT NULL,
	masked_value     TEXT NOT NULL,
	prev_hash        TEXT NOT NULL,
	entry_hash       TEXT NOT NULL,
	timestamp        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_secret ON audit(secret_name, id);
`

// Open creates the store, creating the database file and schema if
// they do not exist.
func Open(cfg Config) (*Store, error) {
	if cfg.Clock == nil {
		return nil, fmt.Errorf("vaultstore: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("vaultstore: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vaultstore: %w", err)
	}

	return &Store{
		pool:   pool,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// UpsertSecret writes or rotates a secret atomically. The version bump
// happens inside the UPSERT statement itself, and the audit row is
// appended in the same IMMEDIATE transaction — exactly one audit row
// per successful write, zero per failed write.
func (s *Store) UpsertSecret(ctx context.Context, params UpsertParams) (UpsertResult, error) {
	if params.Name == "" {
		return UpsertResult{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if params.EncryptedValue == "" {
		return UpsertResult{}, fmt.Errorf("%w: encrypted value is required", ErrInvalid)
	}
	category := params.Category
	if category == "" {
		category = "general"
	}
	if !ValidCategory(category) {
		return UpsertResult{}, fmt.Errorf("%w: unknown category %q", ErrInvalid, category)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return UpsertResult{}, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("vaultstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	now := s.clock.Now().UnixNano()

	var version int64
	err = sqlitex.Execute(conn, `
		INSERT INTO secrets (
			name, encrypted_value, fingerprint, masked_value,
			category, rotation_version, updated_by, notes, is_active,
			validation_status, last_validated, access_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?, 1, 'unknown', NULL, 0, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			encrypted_value   = excluded.encrypted_value,
			fingerprint       = excluded.fingerprint,
			masked_value      = excluded.masked_value,
			category          = excluded.category,
			rotation_version  = secrets.rotation_version + 1,
			updated_by        = excluded.updated_by,
			notes             = excluded.notes,
			is_active         = 1,
			validation_status = 'unknown',
			last_validated    = NULL,
			updated_at        = excluded.updated_at
		RETURNING rotation_version`,
		&sqlitex.ExecOptions{
			Args: []any{
				params.Name, params.EncryptedValue, params.Fingerprint,
				params.MaskedValue, category, params.UpdatedBy,
				params.Notes, now, now,
			},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				version = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("vaultstore: upsert %s: %w", params.Name, err)
	}

	wasUpdate := version > 1
	action := ActionWrite
	if wasUpdate {
		action = ActionRotate
	}

	if err = s.appendAudit(conn, AuditEntry{
		SecretName:      params.Name,
		Action:          action,
		Actor:           params.UpdatedBy,
		Category:        category,
		RotationVersion: version,
		Fingerprint:     params.Fingerprint,
		MaskedValue:     params.MaskedValue,
		Timestamp:       time.Unix(0, now).UTC(),
	}); err != nil {
		return UpsertResult{}, err
	}

	s.logger.Info("secret written",
		"name", params.Name,
		"action", action,
		"rotation_version", version,
		"fingerprint", params.Fingerprint,
		"updated_by", params.UpdatedBy,
	)

	return UpsertResult{RotationVersion: version, WasUpdate: wasUpdate}, nil
}

// GetSecret returns the encrypted envelope and rotation version for an
// active secret, or ErrNotFound. This is the privileged read — the RPC
// layer gates it behind the service token.
func (s *Store) GetSecret(ctx context.Context, name string) (string, int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", 0, err
	}
	defer s.pool.Put(conn)

	var envelope string
	var rotationVersion int64
	var found bool
	err = sqlitex.Execute(conn,
		`SELECT encrypted_value, rotation_version FROM secrets WHERE name = ? AND is_active = 1`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				envelope = stmt.ColumnText(0)
				rotationVersion = stmt.ColumnInt64(1)
				found = true
				return nil
			},
		})
	if err != nil {
		return "", 0, fmt.Errorf("vaultstore: get %s: %w", name, err)
	}
	if !found {
		return "", 0, ErrNotFound
	}
	return envelope, rotationVersion, nil
}

// IncrementAccess bumps the access counter for a secret. Missing rows
// are a no-op: access telemetry is best-effort.
func (s *Store) IncrementAccess(ctx context.Context, name string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`UPDATE secrets SET access_count = access_count + 1 WHERE name = ?`,
		&sqlitex.ExecOptions{Args: []any{name}})
	if err != nil {
		return fmt.Errorf("vaultstore: increment access %s: %w", name, err)
	}
	return nil
}

// Deactivate marks a secret inactive. Reads no longer return it; the
// row and its audit history are preserved.
func (s *Store) Deactivate(ctx context.Context, name string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UnixNano()
	err = sqlitex.Execute(conn,
		`UPDATE secrets SET is_active = 0, updated_at = ? WHERE name = ?`,
		&sqlitex.ExecOptions{Args: []any{now, name}})
	if err != nil {
		return fmt.Errorf("vaultstore: deactivate %s: %w", name, err)
	}
	if conn.Changes() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSecrets returns the metadata of every secret, ordered by name.
// Envelopes are omitted: list responses must never carry encrypted
// values out of the privileged path.
func (s *Store) ListSecrets(ctx context.Context) ([]Secret, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var secrets []Secret
	err = sqlitex.Execute(conn, `
		SELECT name, fingerprint, masked_value, category,
		       rotation_version, updated_by, notes, is_active,
		       validation_status, last_validated, access_count,
		       created_at, updated_at
		FROM secrets ORDER BY name`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record := Secret{
					Name:             stmt.ColumnText(0),
					Fingerprint:      stmt.ColumnText(1),
					MaskedValue:      stmt.ColumnText(2),
					Category:         stmt.ColumnText(3),
					RotationVersion:  stmt.ColumnInt64(4),
					UpdatedBy:        stmt.ColumnText(5),
					Notes:            stmt.ColumnText(6),
					IsActive:         stmt.ColumnInt64(7) != 0,
					ValidationStatus: stmt.ColumnText(8),
					AccessCount:      stmt.ColumnInt64(10),
					CreatedAt:        time.Unix(0, stmt.ColumnInt64(11)).UTC(),
					UpdatedAt:        time.Unix(0, stmt.ColumnInt64(12)).UTC(),
				}
				if stmt.ColumnType(9) != sqlite.TypeNull {
					validated := time.Unix(0, stmt.ColumnInt64(9)).UTC()
					record.LastValidated = &validated
				}
				secrets = append(secrets, record)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("vaultstore: list: %w", err)
	}
	return secrets, nil
}
