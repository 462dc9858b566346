// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope implements the vault's authenticated encryption of
// secret values at rest.
//
// Each encrypted value is a self-describing envelope: a version field,
// a random per-encryption salt for key derivation, a random GCM nonce,
// the authentication tag, and the ciphertext. The envelope is
// serialized as JSON with hex fields and base64-encoded for storage,
// so it survives any transport that can carry a string.
//
// The encryption key is derived per call with PBKDF2-SHA256 from two
// bootstrap secrets that must be available outside the vault itself
// (they are the trust anchor): the application signing secret and the
// project reference. Missing bootstrap material is a fatal
// misconfiguration — every operation fails, nothing falls back to a
// default key.
//
// Envelopes are nondeterministic (fresh salt and nonce per call), so
// two encryptions of the same plaintext never compare equal. Use
// Fingerprint for change detection without decryption, and Mask for
// values that must appear in logs or audit metadata.
package envelope
