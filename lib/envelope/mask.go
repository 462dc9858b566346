// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// fingerprintLength is the number of hex characters kept from the
// SHA-256 digest. 12 characters (48 bits) is plenty for change
// detection; the fingerprint is a diagnostic aid, never an
// access-control decision.
const fingerprintLength = 12

// Fingerprint returns a short, deterministic, one-way hash of a
// plaintext: hex(SHA-256(plaintext)) truncated to 12 characters.
// It lets callers detect that a secret changed without storing,
// comparing, or logging the plaintext itself.
func Fingerprint(plaintext []byte) string {
	digest := sha256.Sum256(plaintext)
	return hex.EncodeToString(digest[:])[:fingerprintLength]
}

// Mask returns a display-safe form of a secret value for logs and
// audit metadata: a fixed placeholder for short values, otherwise the
// first six characters followed by the total length, for example
// "sk-ant***(108)". The real value must never appear in logs.
func Mask(value string) string {
	if len(value) < 8 {
		return "***"
	}
	return fmt.Sprintf("%s***(%d)", value[:6], len(value))
}
