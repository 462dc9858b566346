// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package vaultstore implements the privileged, server-side storage
// for the secret authority: the secrets table (encrypted envelopes,
// never plaintext) and the append-only audit table.
//
// Only the store service links this package. Clients reach it through
// the /v1/* RPC surface with the service token; nothing else can read
// encrypted_value.
//
// Rotation versioning is atomic: UpsertSecret bumps rotation_version
// inside a single INSERT ... ON CONFLICT ... RETURNING statement and
// appends the audit row in the same transaction. Two concurrent writes
// to one name therefore produce two distinct, strictly increasing
// versions and two audit rows — no lost update, no duplicate version.
//
// Audit rows form a hash chain: each row's entry_hash is a keyed
// BLAKE3 digest over the previous row's hash and this row's fields.
// Rewriting or deleting history breaks the chain, which
// VerifyAuditChain detects.
package vaultstore
