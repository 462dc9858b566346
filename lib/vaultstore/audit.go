// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package vaultstore

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Audit actions. A fresh name is a write; every subsequent version of
// the same name is a rotate.
const (
	ActionWrite  = "write"
	ActionRotate = "rotate"
)

// AuditEntry is one append-only audit row. Metadata only — the masked
// value and fingerprint stand in for the plaintext, which never
// reaches the audit table.
type AuditEntry struct {
	ID              int64
	SecretName      string
	Action          string
	Actor           string
	Category        string
	RotationVersion int64
	Fingerprint     string
	MaskedValue     string
	PrevHash        string
	EntryHash       string
	Timestamp       time.Time
}

// auditDomainKey is the BLAKE3 key for audit chain hashing. A fixed
// ASCII constant, zero-padded to 32 bytes: domain separation, not a
// secret. Changing it invalidates every existing chain.
var auditDomainKey = [32]byte{
	'j', 'a', 'v', 'a', 'r', 'i', '.', 'v', 'a', 'u', 'l', 't', '.',
	'a', 'u', 'd', 'i', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// chainHash computes the entry hash for an audit row given the
// previous row's hash. Fields are length-framed so no two field
// sequences can collide by concatenation.
func chainHash(prevHash string, entry AuditEntry) (string, error) {
	hasher, err := blake3.NewKeyed(auditDomainKey[:])
	if err != nil {
		return "", fmt.Errorf("vaultstore: audit hasher: %w", err)
	}

	writeField := func(field string) {
		var length [8]byte
		binary.BigEndian.PutUint64(length[:], uint64(len(field)))
		hasher.Write(length[:])
		hasher.Write([]byte(field))
	}

	writeField(prevHash)
	writeField(entry.SecretName)
	writeField(entry.Action)
	writeField(entry.Actor)
	writeField(entry.Category)
	writeField(fmt.Sprintf("%d", entry.RotationVersion))
	writeField(entry.Fingerprint)
	writeField(entry.MaskedValue)
	writeField(fmt.Sprintf("%d", entry.Timestamp.UnixNano()))

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// appendAudit inserts one audit row, chained to the latest existing
// row. Must run inside the caller's transaction so the chain head
// cannot move between read and insert.
func (s *Store) appendAudit(conn *sqlite.Conn, entry AuditEntry) error {
	prevHash := ""
	err := sqlitex.Execute(conn,
		`SELECT entry_hash FROM audit ORDER BY id DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				prevHash = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("vaultstore: reading audit chain head: %w", err)
	}

	entryHash, err := chainHash(prevHash, entry)
	if err != nil {
		return err
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO audit (
			secret_name, action, actor, category, rotation_version,
			fingerprint, masked_value, prev_hash, entry_hash, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				entry.SecretName, entry.Action, entry.Actor,
				entry.Category, entry.RotationVersion,
				entry.Fingerprint, entry.MaskedValue,
				prevHash, entryHash, entry.Timestamp.UnixNano(),
			},
		})
	if err != nil {
		return fmt.Errorf("vaultstore: appending audit row: %w", err)
	}
	return nil
}

// AuditEntries returns audit rows, newest first. If name is non-empty,
// only rows for that secret are returned. limit <= 0 means no limit.
func (s *Store) AuditEntries(ctx context.Context, name string, limit int) ([]AuditEntry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	query := `SELECT id, secret_name, action, actor, category,
	       rotation_version, fingerprint, masked_value, prev_hash,
	       entry_hash, timestamp FROM audit`
	var args []any
	if name != "" {
		query += ` WHERE secret_name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var entries []AuditEntry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args:       args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, auditEntryFromRow(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vaultstore: audit entries: %w", err)
	}
	return entries, nil
}

// VerifyAuditChain recomputes every entry hash in id order and checks
// it against the stored chain. Returns the number of verified rows, or
// an error naming the first row where the chain breaks.
func (s *Store) VerifyAuditChain(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	verified := 0
	expectedPrev := ""
	err = sqlitex.Execute(conn, `
		SELECT id, secret_name, action, actor, category,
		       rotation_version, fingerprint, masked_value, prev_hash,
		       entry_hash, timestamp
		FROM audit ORDER BY id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry := auditEntryFromRow(stmt)
				if entry.PrevHash != expectedPrev {
					return fmt.Errorf("audit row %d: prev_hash mismatch", entry.ID)
				}
				recomputed, err := chainHash(entry.PrevHash, entry)
				if err != nil {
					return err
				}
				if recomputed != entry.EntryHash {
					return fmt.Errorf("audit row %d: entry_hash mismatch", entry.ID)
				}
				expectedPrev = entry.EntryHash
				verified++
				return nil
			},
		})
	if err != nil {
		return verified, fmt.Errorf("vaultstore: verify audit chain: %w", err)
	}
	return verified, nil
}

// auditEntryFromRow decodes one row of the audit SELECT column layout
// shared by AuditEntries and VerifyAuditChain.
func auditEntryFromRow(stmt *sqlite.Stmt) AuditEntry {
	return AuditEntry{
		ID:              stmt.ColumnInt64(0),
		SecretName:      stmt.ColumnText(1),
		Action:          stmt.ColumnText(2),
		Actor:           stmt.ColumnText(3),
		Category:        stmt.ColumnText(4),
		RotationVersion: stmt.ColumnInt64(5),
		Fingerprint:     stmt.ColumnText(6),
		MaskedValue:     stmt.ColumnText(7),
		PrevHash:        stmt.ColumnText(8),
		EntryHash:       stmt.ColumnText(9),
		Timestamp:       time.Unix(0, stmt.ColumnInt64(10)).UTC(),
	}
}
