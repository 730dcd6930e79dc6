// Package cache implements the three coordinated caches and the
// orchestrator + event bus described in spec §4.4-4.7.
package cache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTLCache is the generic in-memory KV cache with TTL and periodic cleanup
// (spec §4.4), backed by github.com/jellydator/ttlcache/v3 instead of a
// hand-rolled sweep loop.
type TTLCache struct {
	inner      *ttlcache.Cache[string, []byte]
	defaultTTL time.Duration
}

// NewTTLCache returns a TTLCache with the given default TTL (used when Set
// is called with ttl<0; ttl==0 means no expiry) and starts its background
// eviction loop.
func NewTTLCache(defaultTTL time.Duration) *TTLCache {
	inner := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](defaultTTL),
	)
	go inner.Start()
	return &TTLCache{inner: inner, defaultTTL: defaultTTL}
}

// Stop halts the background eviction loop.
func (c *TTLCache) Stop() {
	c.inner.Stop()
}

// Get returns the stored value and true if present and unexpired.
func (c *TTLCache) Get(key string) ([]byte, bool) {
	item := c.inner.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set stores v under key. ttl<0 uses the cache's default TTL; ttl==0 means
// no expiry (ttlcache.NoTTL).
func (c *TTLCache) Set(key string, v []byte, ttl time.Duration) {
	switch {
	case ttl < 0:
		c.inner.Set(key, v, c.defaultTTL)
	case ttl == 0:
		c.inner.Set(key, v, ttlcache.NoTTL)
	default:
		c.inner.Set(key, v, ttl)
	}
}

// GetAsync returns the cached value for key, or computes it via compute,
// stores it at the default TTL, and returns it.
func (c *TTLCache) GetAsync(key string, compute func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return nil, err
	}
	c.Set(key, v, -1)
	return v, nil
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.inner.Delete(key)
}

// diskEntry is the persisted form of one TTL cache item.
type diskEntry struct {
	Value  []byte    `json:"value"`
	Expiry time.Time `json:"expiry,omitempty"`
}

// Save persists all currently unexpired items to path as JSON.
func (c *TTLCache) Save(path string) error {
	items := c.inner.Items()
	out := make(map[string]diskEntry, len(items))
	for key, item := range items {
		out[key] = diskEntry{Value: item.Value(), Expiry: item.ExpiresAt()}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTTLCache reads a previously-saved cache file, dropping entries whose
// expiry has already passed.
func LoadTTLCache(path string, defaultTTL time.Duration) (*TTLCache, error) {
	c := NewTTLCache(defaultTTL)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	var stored map[string]diskEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	now := time.Now()
	for key, entry := range stored {
		if !entry.Expiry.IsZero() && entry.Expiry.Before(now) {
			continue
		}
		ttl := ttlcache.NoTTL
		if !entry.Expiry.IsZero() {
			ttl = entry.Expiry.Sub(now)
		}
		c.inner.Set(key, entry.Value, ttl)
	}
	return c, nil
}
