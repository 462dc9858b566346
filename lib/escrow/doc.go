// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package escrow builds and opens portable secret bundles for disaster
// recovery and environment migration. A bundle is a CBOR document of
// decrypted secrets, compressed, encrypted with age to one or more
// recipient keys, and base64-encoded for storage anywhere a string
// fits.
//
// The bundle deliberately does not reuse the store's per-secret
// envelope format: envelopes are bound to one deployment's bootstrap
// material, while an escrow bundle must open in a different
// environment, holding only the recipient's age private key.
//
// Private keys and opened bundles pass through guard.Buffer memory
// (locked against swap, excluded from core dumps, zeroed on close).
package escrow
