// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package envshim replaces direct process environment access for code
// migrating from env-var secrets to the vault. Getenv and LookupEnv
// answer bootstrap names from the real environment, everything else
// from the vault client's cache — synchronously, with no I/O on the
// lookup path.
//
// The cache-only rule has one consequence callers must respect: a
// lookup before the cache is warmed misses. The shim makes that cold
// read loud (an error log and a counter in Status) instead of silently
// returning an empty value, and falls back to the process environment
// so a half-migrated deployment keeps working. Call Warm before
// serving traffic.
package envshim
