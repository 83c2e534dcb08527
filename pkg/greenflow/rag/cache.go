package rag

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
)

// RetrievalCache memoizes index lookups by normalized query text with a TTL.
// Entries are keyed by index generation, so a lookup that raced with an
// index update is never served for the new generation.
type RetrievalCache struct {
	data   map[string]*cacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	stopCh chan struct{}
	once   sync.Once
}

type cacheEntry struct {
	matches   []Match
	timestamp time.Time
	hits      int64
}

// NewRetrievalCache creates a cache and starts its cleanup goroutine.
// Callers must Close it.
func NewRetrievalCache(ttl time.Duration) *RetrievalCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	c := &RetrievalCache{
		data:   make(map[string]*cacheEntry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func cacheKey(query string, k int, gen uint64) string {
	return strings.Join(tokenize(query), " ") + "|" + strconv.Itoa(k) + "|" + strconv.FormatUint(gen, 10)
}

// Get returns cached matches for query at index generation gen if still fresh
func (c *RetrievalCache) Get(query string, k int, gen uint64) ([]Match, bool) {
	key := cacheKey(query, k, gen)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.data[key]
	if !exists || time.Since(entry.timestamp) > c.ttl {
		metrics.RAGCacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}
	entry.hits++
	metrics.RAGCacheRequests.WithLabelValues("hit").Inc()
	return entry.matches, true
}

// Set stores matches for query computed at index generation gen
func (c *RetrievalCache) Set(query string, k int, gen uint64, matches []Match) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[cacheKey(query, k, gen)] = &cacheEntry{
		matches:   matches,
		timestamp: time.Now(),
	}
}

// Clear drops every entry, used when the index changes
func (c *RetrievalCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]*cacheEntry)
	klog.V(4).InfoS("Cleared retrieval cache")
}

// Size returns the number of entries in the cache
func (c *RetrievalCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

func (c *RetrievalCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *RetrievalCache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if age := now.Sub(entry.timestamp); age > c.ttl {
			delete(c.data, key)
			klog.V(4).InfoS("Removed expired retrieval cache entry", "age", age.String(), "hits", entry.hits)
		}
	}
}

// Close stops the cleanup goroutine
func (c *RetrievalCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
