// Package cache implements the bounded, TTL-expiring, LRU-evicting cache
// used throughout the skills runtime, plus a singleflight-style variant that
// collapses concurrent loads of the same key into one.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// TTLCache is a thread-safe cache with per-entry expiration and true
// least-recently-used eviction: both Get and Refresh count as an access, and
// eviction on a full cache removes the entry with the oldest lastAccessAt,
// not the oldest insertion time.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]*cacheEntry[V]
	defaultTTL time.Duration
	maxSize    int
	cleanupMu  sync.Mutex
	stopCh     chan struct{}
	stopped    atomic.Bool

	hits   atomic.Uint64
	misses atomic.Uint64
	evicts atomic.Uint64
}

type cacheEntry[V any] struct {
	value        V
	expiresAt    time.Time
	createdAt    time.Time
	lastAccessAt time.Time
}

// Config configures a TTLCache.
type Config struct {
	// DefaultTTL is the default time-to-live for entries.
	DefaultTTL time.Duration
	// MaxSize limits the cache size (0 = unlimited).
	MaxSize int
	// CleanupInterval sets how often to scan for expired entries (0 = no
	// automatic cleanup).
	CleanupInterval time.Duration
}

// New creates a new TTLCache with the given configuration.
func New[K comparable, V any](config Config) *TTLCache[K, V] {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}

	c := &TTLCache[K, V]{
		entries:    make(map[K]*cacheEntry[V]),
		defaultTTL: config.DefaultTTL,
		maxSize:    config.MaxSize,
		stopCh:     make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go c.cleanupLoop(config.CleanupInterval)
	}

	return c
}

// Set stores a value with the default TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL.
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	now := time.Now()
	entry := &cacheEntry[V]{
		value:        value,
		expiresAt:    now.Add(ttl),
		createdAt:    now,
		lastAccessAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.entries[key] = entry
}

// Get retrieves a value from the cache, refreshing its last-access time.
// Returns the value and true if found and not expired, zero value and false
// otherwise.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	if time.Now().After(entry.expiresAt) {
		c.misses.Add(1)
		delete(c.entries, key)
		var zero V
		return zero, false
	}

	entry.lastAccessAt = time.Now()
	c.hits.Add(1)
	return entry.value, true
}

// GetOrSet returns an existing value or stores and returns a new one. create
// is only called if the key doesn't exist or is expired.
func (c *TTLCache[K, V]) GetOrSet(key K, create func() V) V {
	return c.GetOrSetWithTTL(key, create, c.defaultTTL)
}

// GetOrSetWithTTL returns an existing value or stores and returns a new one
// with a custom TTL.
func (c *TTLCache[K, V]) GetOrSetWithTTL(key K, create func() V, ttl time.Duration) V {
	if value, ok := c.Get(key); ok {
		return value
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		entry.lastAccessAt = time.Now()
		c.hits.Add(1)
		return entry.value
	}

	value := create()
	now := time.Now()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	c.entries[key] = &cacheEntry[V]{
		value:        value,
		expiresAt:    now.Add(ttl),
		createdAt:    now,
		lastAccessAt: now,
	}
	return value
}

// Delete removes a key from the cache.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries from the cache.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]*cacheEntry[V])
	c.mu.Unlock()
}

// Len returns the number of entries in the cache, including expired ones not
// yet swept.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Refresh extends a key's expiration without returning its value. Both Get
// and Refresh count as an access for LRU purposes.
func (c *TTLCache[K, V]) Refresh(key K, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return false
	}

	now := time.Now()
	entry.expiresAt = now.Add(ttl)
	entry.lastAccessAt = now
	return true
}

// Keys returns all non-expired keys.
func (c *TTLCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	keys := make([]K, 0, len(c.entries))
	for k, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *TTLCache[K, V]) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		Evicts:  c.evicts.Load(),
		HitRate: hitRate,
	}
}

// Stats reports cache hit/miss/eviction counters.
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	Evicts  uint64
	HitRate float64
}

// Stop stops the background cleanup goroutine, if one was started.
func (c *TTLCache[K, V]) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
}

// Cleanup removes expired entries and returns how many were removed.
func (c *TTLCache[K, V]) Cleanup() int {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// evictLRU removes the entry with the oldest lastAccessAt. Must be called
// with mu held.
func (c *TTLCache[K, V]) evictLRU() {
	var oldestKey K
	var oldestTime time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.lastAccessAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.lastAccessAt
			first = false
		}
	}

	if !first {
		delete(c.entries, oldestKey)
		c.evicts.Add(1)
	}
}

// EvictFraction evicts the least-recently-used fraction (0..1) of entries,
// rounded up, and returns how many were removed. Used by the memory cleaner
// to shed load under pressure.
func (c *TTLCache[K, V]) EvictFraction(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	if fraction > 1 {
		fraction = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	target := int(float64(n)*fraction + 0.999999)
	if target <= 0 {
		return 0
	}
	for i := 0; i < target; i++ {
		if len(c.entries) == 0 {
			break
		}
		c.evictLRU()
	}
	return target
}

func (c *TTLCache[K, V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// AsyncCache wraps TTLCache with singleflight loading: concurrent callers
// requesting the same missing key block on the first caller's load instead
// of each re-executing it.
type AsyncCache[K comparable, V any] struct {
	cache    *TTLCache[K, V]
	loading  map[K]chan struct{}
	loadingM sync.Mutex
}

// NewAsync creates a new AsyncCache.
func NewAsync[K comparable, V any](config Config) *AsyncCache[K, V] {
	return &AsyncCache[K, V]{
		cache:   New[K, V](config),
		loading: make(map[K]chan struct{}),
	}
}

// Get retrieves a value, invoking loader if needed. Only one goroutine calls
// loader for a given key at a time; others wait for it to finish and reuse
// its result.
func (c *AsyncCache[K, V]) Get(key K, loader func(K) (V, error)) (V, bool, error) {
	return c.GetWithTTL(key, loader, c.cache.defaultTTL)
}

// GetWithTTL is Get with a custom TTL applied to a freshly loaded value. The
// bool result reports whether the value came from cache (a hit).
func (c *AsyncCache[K, V]) GetWithTTL(key K, loader func(K) (V, error), ttl time.Duration) (V, bool, error) {
	if value, ok := c.cache.Get(key); ok {
		return value, true, nil
	}

	c.loadingM.Lock()

	if value, ok := c.cache.Get(key); ok {
		c.loadingM.Unlock()
		return value, true, nil
	}

	if ch, ok := c.loading[key]; ok {
		c.loadingM.Unlock()
		<-ch
		if value, ok := c.cache.Get(key); ok {
			return value, true, nil
		}
		return c.GetWithTTL(key, loader, ttl)
	}

	ch := make(chan struct{})
	c.loading[key] = ch
	c.loadingM.Unlock()

	value, err := loader(key)
	if err == nil {
		c.cache.SetWithTTL(key, value, ttl)
	}

	c.loadingM.Lock()
	delete(c.loading, key)
	close(ch)
	c.loadingM.Unlock()

	if err != nil {
		var zero V
		return zero, false, err
	}
	return value, false, nil
}

// Delete removes a key.
func (c *AsyncCache[K, V]) Delete(key K) { c.cache.Delete(key) }

// Clear removes all entries.
func (c *AsyncCache[K, V]) Clear() { c.cache.Clear() }

// Stats returns the underlying cache's statistics.
func (c *AsyncCache[K, V]) Stats() Stats { return c.cache.Stats() }
