// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects Real(); tests inject Fake() with deterministic time
// control.
//
// Every production function that reads the current time or sleeps
// should accept a Clock parameter (or be a method on a struct with a
// Clock field) instead of calling the time package directly. The vault
// cache's TTL expiry and the batch-write pacing delay both run on an
// injected Clock so tests never sleep for real.
package clock

import "time"

// Clock abstracts the time operations the vault needs.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after
	// duration d elapses. Equivalent to time.After. If d <= 0, the
	// channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// Sleep pauses the current goroutine for at least duration d.
	// Equivalent to time.Sleep.
	Sleep(d time.Duration)
}
