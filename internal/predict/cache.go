package predict

import (
	"crypto/md5"
	"encoding/hex"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// Source tags which cascade branch produced a result.
type Source string

const (
	SourcePrimary         Source = "primary"
	SourceSecondary       Source = "secondary"
	SourcePrimaryFallback Source = "primary_fallback"
)

// Result is a finished classification.
type Result struct {
	Name       string
	Confidence string
	Source     Source
}

const (
	// evictDivisor sets the batch size for capacity evictions: the oldest
	// 1/evictDivisor of entries go in one sweep, amortizing cleanup cost.
	evictDivisor = 5

	// sweepsPerReclaim forces memory reclamation every N sweeps even when
	// nothing was evicted; the collector alone is not timely enough on a
	// memory-constrained host.
	sweepsPerReclaim = 50
)

// Fingerprint returns the cache key for an image URL.
func Fingerprint(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	result  Result
	created time.Time
}

// Cache is a bounded TTL map from URL fingerprints to results. Expired
// entries are swept lazily on every operation, never by a timer.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	sweeps  int

	now     func() time.Time
	reclaim func()
}

// NewCache creates a cache holding at most maxSize entries for at most ttl.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		reclaim: debug.FreeOSMemory,
	}
}

// SetLimits adjusts capacity and TTL, e.g. after a config reload.
func (c *Cache) SetLimits(maxSize int, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.maxSize = maxSize
	c.ttl = ttl
}

// Get returns the cached result for key if it has not expired.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()

	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.now().Sub(entry.created) > c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

// Set stores a result, evicting the oldest batch first when at capacity.
func (c *Cache) Set(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
		c.reclaim()
	}

	c.entries[key] = cacheEntry{result: result, created: c.now()}
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// sweep drops expired entries. Callers hold the mutex.
func (c *Cache) sweep() {
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.created) > c.ttl {
			delete(c.entries, key)
		}
	}

	c.sweeps++
	if c.sweeps%sweepsPerReclaim == 0 {
		c.reclaim()
	}
}

// evictOldest removes the oldest batch of entries by creation time.
// Callers hold the mutex.
func (c *Cache) evictOldest() {
	n := len(c.entries) / evictDivisor
	if n < 1 {
		n = 1
	}

	type aged struct {
		key     string
		created time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key: key, created: entry.created})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })

	for _, entry := range all[:n] {
		delete(c.entries, entry.key)
	}
}
