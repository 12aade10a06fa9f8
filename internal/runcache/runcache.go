// Package runcache memoizes pipeline results by the content of their inputs.
// A changed file or setting produces a different key, so stale results are
// never served; Invalidate and Purge force a recompute of unchanged inputs.
package runcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/couchcryptid/fd2w-etl/internal/lru"
)

// Key hashes parts into a hex SHA-256 content key. Each part is length
// prefixed, so ("ab", "c") and ("a", "bc") give different keys.
func Key(parts ...[]byte) string {
	h := sha256.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Cache holds the most recent results, evicting the least recently used.
type Cache[V any] struct {
	entries *lru.Cache[string, V]
}

// New creates a cache bounded to maxEntries results.
func New[V any](maxEntries int) *Cache[V] {
	return &Cache[V]{entries: lru.New[string, V](maxEntries)}
}

// Get returns the result stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.entries.Get(key)
}

// Put stores a result under key.
func (c *Cache[V]) Put(key string, v V) {
	c.entries.Put(key, v)
}

// Invalidate drops one key and reports whether it was cached.
func (c *Cache[V]) Invalidate(key string) bool {
	return c.entries.Remove(key)
}

// Purge drops every cached result.
func (c *Cache[V]) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached results.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}
