package cache

import (
	"context"
	"slices"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-memory cache implementation with automatic cleanup.
type MemoryCache struct {
	cache  *gocache.Cache
	config Config
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(config Config) *MemoryCache {
	config = applyDefaults(config)
	return &MemoryCache{
		cache:  gocache.New(config.TTL, config.CleanupInterval),
		config: config,
	}
}

// Get retrieves a copy of an entry from the cache.
func (mc *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	val, found := mc.cache.Get(key)
	if !found {
		return nil, nil
	}

	entry, ok := val.(*Entry)
	if !ok || !entry.IsFresh() {
		mc.cache.Delete(key)
		return nil, nil
	}

	return copyEntry(entry), nil
}

// Set stores a copy of an entry in the cache.
func (mc *MemoryCache) Set(ctx context.Context, entry *Entry) error {
	stored := copyEntry(entry)
	if stored.TTL == 0 {
		stored.TTL = mc.config.TTL
	}
	mc.cache.Set(stored.Key, stored, stored.TTL)
	return nil
}

// Delete removes an entry from the cache.
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.cache.Delete(key)
	return nil
}

// Clear removes all entries from the cache.
func (mc *MemoryCache) Clear(ctx context.Context) error {
	mc.cache.Flush()
	return nil
}

// Close releases resources held by the cache.
func (mc *MemoryCache) Close() error {
	mc.cache.Flush()
	return nil
}

// ItemCount returns the number of stored entries, including expired ones not yet cleaned up.
func (mc *MemoryCache) ItemCount() int {
	return mc.cache.ItemCount()
}

func copyEntry(e *Entry) *Entry {
	c := *e
	c.Keywords = slices.Clone(e.Keywords)
	return &c
}
