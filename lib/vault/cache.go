// Copyright 2026 The Javari Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"sort"
	"sync"
	"time"

	"github.com/javari-foundation/vault/lib/clock"
)

// cacheEntry is one decrypted value with its expiry.
type cacheEntry struct {
	value   string
	expires time.Time
}

// ttlCache is the in-process plaintext cache. Entries expire after the
// configured TTL and are evicted lazily on access. A mutex-protected
// map is sufficient: the working set is a few dozen secret names, and
// every miss costs a network round trip that dwarfs any lock.
type ttlCache struct {
	mutex   sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clock.Clock
}

func newTTLCache(ttl time.Duration, clk clock.Clock) *ttlCache {
	return &ttlCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

// get returns the cached value for name if present and unexpired.
// Expired entries are removed on the way out.
func (cache *ttlCache) get(name string) (string, bool) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	entry, ok := cache.entries[name]
	if !ok {
		return "", false
	}
	if cache.clock.Now().After(entry.expires) {
		delete(cache.entries, name)
		return "", false
	}
	return entry.value, true
}

// put stores a value under name with a fresh TTL.
func (cache *ttlCache) put(name, value string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.entries[name] = cacheEntry{
		value:   value,
		expires: cache.clock.Now().Add(cache.ttl),
	}
}

// invalidate drops the entry for name, if any. Called after a
// successful write so the next read observes the rotated value.
func (cache *ttlCache) invalidate(name string) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	delete(cache.entries, name)
}

// size returns the number of unexpired entries, evicting expired ones.
func (cache *ttlCache) size() int {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	now := cache.clock.Now()
	for name, entry := range cache.entries {
		if now.After(entry.expires) {
			delete(cache.entries, name)
		}
	}
	return len(cache.entries)
}

// names returns the sorted names of unexpired entries. Names only,
// never values: this feeds status output and logs.
func (cache *ttlCache) names() []string {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	now := cache.clock.Now()
	result := make([]string, 0, len(cache.entries))
	for name, entry := range cache.entries {
		if now.After(entry.expires) {
			delete(cache.entries, name)
			continue
		}
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
