package geocode

import (
	"context"
	"sync"
	"time"

	"study-partner-backend/internal/geo"
)

// Cache stores resolved coordinates keyed by normalized postal code
type Cache interface {
	Get(ctx context.Context, key string) (geo.Coordinate, bool, error)
	Set(ctx context.Context, key string, c geo.Coordinate) error
}

type cacheEntry struct {
	coordinate geo.Coordinate
	expiresAt  time.Time
}

// MemoryCache is an in-process Cache with a fixed time-to-live per entry
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

// Get returns the cached coordinate if present and not expired
func (c *MemoryCache) Get(_ context.Context, key string) (geo.Coordinate, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return geo.Coordinate{}, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// re-check, a concurrent Set may have refreshed it
		if current, ok := c.entries[key]; ok && !c.now().Before(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return geo.Coordinate{}, false, nil
	}

	return entry.coordinate, true, nil
}

// Set stores a coordinate that expires after the cache TTL
func (c *MemoryCache) Set(_ context.Context, key string, coord geo.Coordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		coordinate: coord,
		expiresAt:  c.now().Add(c.ttl),
	}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
