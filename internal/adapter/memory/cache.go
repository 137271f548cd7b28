package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	portcache "github.com/alanyang/annotation-desk/internal/port/cache"
)

var ErrNotFound = errors.New("cache: not found")

var _ portcache.Cache = (*Cache)(nil)

// DefaultMaxEntries bounds a cache created without an explicit limit.
const DefaultMaxEntries = 256

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache holds byte payloads in memory. Entries expire after their TTL and
// the soonest-expiring entry is evicted when the cache is full.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	maxEntries int
	now        func() time.Time
}

func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Set stores value under key. A non-positive ttl is a no-op.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: now.Add(ttl),
	}
	return nil
}

func (c *Cache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops every expired entry, or the soonest-expiring one if
// nothing has expired yet.
func (c *Cache) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
	)
	removed := false
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed = true
			continue
		}
		if victim == "" || e.expiresAt.Before(earliest) {
			victim, earliest = k, e.expiresAt
		}
	}
	if !removed && victim != "" {
		delete(c.entries, victim)
	}
}
