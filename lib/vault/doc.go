// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault is the client library for the secret authority. It
// owns the read path (cache, privileged fetch, decrypt, legacy
// environment fallback) and the write path (encrypt, atomic rotation
// through the store, audit on the server side).
//
// The read path never fails on a missing secret: a name the vault does
// not know falls back to the legacy process environment, and a name
// nothing knows resolves to the empty string with an error logged.
// Crypto failures are different — a malformed or tampered envelope is
// a hard error, never silently replaced by a fallback value.
//
// Client is an injected dependency, not package-level state. Every
// service constructs one from its configuration and passes it where
// secrets are needed.
package vault
