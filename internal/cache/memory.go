package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is the L1 tier: an LRU bounded by entry count that refuses
// clips larger than maxItem bytes.
type MemoryCache struct {
	lru     *lru.Cache[string, []byte]
	maxItem int64

	mu    sync.Mutex
	size  int64
	stats Stats
}

// NewMemoryCache creates a memory cache holding up to entries clips.
func NewMemoryCache(entries int, maxItem int64) (*MemoryCache, error) {
	if entries <= 0 {
		entries = DefaultConfig().MemoryEntries
	}
	c := &MemoryCache{
		maxItem: maxItem,
		stats:   Stats{Capacity: int64(entries)},
	}
	l, err := lru.NewWithEvict[string, []byte](entries, c.onEvict)
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// onEvict is called for evictions, removals and purges.
func (c *MemoryCache) onEvict(_ string, value []byte) {
	c.mu.Lock()
	c.size -= int64(len(value))
	c.mu.Unlock()
}

// Get retrieves a value and marks it recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.LastAccess = time.Now()
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return v, true
}

// Put stores a value, evicting the least recently used clip when full.
func (c *MemoryCache) Put(key string, value []byte) error {
	if c.maxItem > 0 && int64(len(value)) > c.maxItem {
		return ErrItemTooLarge
	}
	// Replacing a key goes through Remove so its old size is released.
	c.lru.Remove(key)

	c.mu.Lock()
	c.size += int64(len(value))
	c.mu.Unlock()

	if evicted := c.lru.Add(key, value); evicted {
		c.mu.Lock()
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
		c.mu.Unlock()
	}
	return nil
}

// Delete removes a value.
func (c *MemoryCache) Delete(key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear removes all values.
func (c *MemoryCache) Clear() error {
	c.lru.Purge()
	return nil
}

// Contains reports whether key is cached without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	return c.lru.Contains(key)
}

// Len returns the number of cached clips.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Size returns the bytes held.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	s.Size = c.size
	c.mu.Unlock()

	s.ItemCount = int64(c.lru.Len())
	s.computeHitRate()
	return s
}
