// Package cache keeps upstream feed snapshots so repeated builds against the
// same URL within a process (or within the disk TTL) fetch it once.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/chapterfeed/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// New builds the cache described by cfg. It returns nil when caching is
// disabled; callers treat a nil Cache as "always miss".
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	memory := NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)
	if cfg.Dir == "" {
		return memory
	}
	return NewLayeredCache(memory, NewDiskCache(cfg.Dir, cfg.DiskTTL))
}

// Key generates a cache key for a feed URL. Scheme and host are
// case-insensitive and fragments never reach the server, so both are
// normalized away before hashing.
func Key(feedURL string) string {
	normalized := feedURL
	if u, err := url.Parse(strings.TrimSpace(feedURL)); err == nil {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		normalized = u.String()
	}
	hash := sha256.Sum256([]byte(normalized))
	return "chapterfeed:v1:" + hex.EncodeToString(hash[:])
}
