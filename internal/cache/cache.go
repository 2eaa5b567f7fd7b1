// Package cache stores derived document artifacts (page maps) keyed by the
// content hash of the source document.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key for an artifact kind computed from content.
func Key(kind string, content []byte) string {
	hash := sha256.Sum256(content)
	return "citecheck:v1:" + kind + ":" + hex.EncodeToString(hash[:])
}

// Nop is a Cache that never stores anything.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error { return nil }
func (Nop) Clear() error { return nil }
