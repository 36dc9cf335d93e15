package cache

import (
	"container/list"
	"math"
	"sync"
	"time"
)

// DefaultSweepInterval is the fallback interval for the background sweep.
const DefaultSweepInterval = time.Minute

// entry is one cached value with its lifetime bounds.
type entry[V any] struct {
	key       string
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// Observer receives cache effectiveness events as they happen, for export
// to an external metrics backend. Implementations are invoked with the
// cache lock held and must not call back into the cache.
type Observer interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheEviction()
	UpdateCacheSize(size int)
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	TotalRequests int64   `json:"total_requests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	CurrentSize   int     `json:"current_size"`
	MaxSize       int     `json:"max_size"`
	Evictions     int64   `json:"evictions"`
	Expirations   int64   `json:"expirations"`
}

// Cache is a bounded TTL cache with LRU eviction.
// All methods are safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration

	// order holds *entry[V] elements, most recently used at the front.
	order   *list.List
	entries map[string]*list.Element

	totalRequests int64
	hits          int64
	misses        int64
	evictions     int64
	expirations   int64

	observer Observer

	stopCh chan struct{}
	once   sync.Once
}

// New creates a cache holding at most maxSize entries, each living for ttl.
// A background sweep runs every sweepInterval (DefaultSweepInterval when
// zero or negative) until Close is called.
func New[V any](maxSize int, ttl, sweepInterval time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	c := &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		stopCh:  make(chan struct{}),
	}

	go c.sweep(sweepInterval)

	return c
}

// SetObserver attaches obs to the cache. Pass nil to detach.
func (c *Cache[V]) SetObserver(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = obs
}

// Get returns the cached value for key.
// A hit past expiry counts as a miss, deletes the entry, and increments the
// expiration counter. A hit moves the entry to most-recently-used position.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		if c.observer != nil {
			c.observer.RecordCacheMiss()
		}
		var zero V
		return zero, false
	}

	ent := elem.Value.(*entry[V])
	if time.Now().After(ent.expiresAt) {
		c.removeLocked(elem)
		c.expirations++
		c.misses++
		if c.observer != nil {
			c.observer.RecordCacheMiss()
			c.observer.UpdateCacheSize(c.order.Len())
		}
		var zero V
		return zero, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	if c.observer != nil {
		c.observer.RecordCacheHit()
	}
	return ent.value, true
}

// Set stores value under key. An existing entry is overwritten; at capacity
// the least-recently-used entry is evicted first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.createdAt = now
		ent.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeLocked(oldest)
			c.evictions++
			if c.observer != nil {
				c.observer.RecordCacheEviction()
			}
		}
	}

	elem := c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	})
	c.entries[key] = elem
	if c.observer != nil {
		c.observer.UpdateCacheSize(c.order.Len())
	}
}

// Has reports whether key holds an unexpired entry. Expired entries are
// deleted and counted like in Get, but recency order is not touched.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}

	if time.Now().After(elem.Value.(*entry[V]).expiresAt) {
		c.removeLocked(elem)
		c.expirations++
		if c.observer != nil {
			c.observer.UpdateCacheSize(c.order.Len())
		}
		return false
	}
	return true
}

// Delete removes key. It reports whether an entry was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(elem)
	if c.observer != nil {
		c.observer.UpdateCacheSize(c.order.Len())
	}
	return true
}

// Clear removes every entry. Counters are preserved.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	if c.observer != nil {
		c.observer.UpdateCacheSize(0)
	}
}

// Len returns the current number of entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters. HitRate is a percentage
// rounded to two decimal places.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var hitRate float64
	if c.totalRequests > 0 {
		hitRate = math.Round(float64(c.hits)/float64(c.totalRequests)*10000) / 100
	}

	return Stats{
		TotalRequests: c.totalRequests,
		Hits:          c.hits,
		Misses:        c.misses,
		HitRate:       hitRate,
		CurrentSize:   c.order.Len(),
		MaxSize:       c.maxSize,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
	}
}

// Close stops the background sweep. The cache remains usable afterwards;
// expired entries are then reclaimed only on access.
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.stopCh) })
}

// removeLocked unlinks an element. Caller must hold the lock.
func (c *Cache[V]) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry[V])
	c.order.Remove(elem)
	delete(c.entries, ent.key)
}

// sweep proactively deletes expired entries on a fixed interval so they do
// not linger until the next access.
func (c *Cache[V]) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

// removeExpired deletes all currently expired entries.
func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[V]).expiresAt) {
			c.removeLocked(elem)
			c.expirations++
			removed++
		}
		elem = prev
	}
	if removed > 0 && c.observer != nil {
		c.observer.UpdateCacheSize(c.order.Len())
	}
}
