// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package guard provides a memory-safe buffer for sensitive data such
// as the vault's key-derivation material, service tokens, and secret
// values prompted from an operator.
//
// Buffer allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory is
// outside the Go heap, the garbage collector never copies or relocates
// it, so Close reliably destroys the only durable copy.
package guard
