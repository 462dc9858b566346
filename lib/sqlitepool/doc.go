// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the vault-standard SQLite connection
// pool. The secret store service uses it for the secrets and audit
// tables; anything else in this repository that needs local structured
// storage goes through the same pool.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, FULL synchronous (a vault must not lose an
// acknowledged write, even across power failure), and a busy timeout
// so concurrent writers wait instead of failing with SQLITE_BUSY.
//
// Callers [Pool.Take] a connection, perform work, and [Pool.Put] it
// back. Connections are NOT safe for concurrent use — each goroutine
// must hold its own connection for the duration of its work.
//
// The package is intentionally thin: it applies standard pragmas and
// exposes the zombiezen types directly. Services write SQL, use
// sqlitex.Execute for cached statements, and manage transactions with
// sqlitex.ImmediateTransaction. No query builder, no ORM.
package sqlitepool
