package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/mikey/chain-risk/internal/core"
	"go.uber.org/zap"
)

const shardCount = 256

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]*core.CacheEntry
}

// MemoryCache is an in-memory implementation of the CacheRepository interface.
// Keys are spread over a fixed pool of shards so unrelated keys rarely contend.
type MemoryCache struct {
	shards      [shardCount]memoryShard
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}
	for i := range cache.shards {
		cache.shards[i].entries = make(map[string]*core.CacheEntry)
	}

	// Start background cleanup
	go runCleanup(cache.cleanupFreq, cache.stopCh, cache.Cleanup, logger)

	return cache
}

func (c *MemoryCache) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &c.shards[h.Sum32()%shardCount]
}

// Get retrieves an unexpired cache entry
func (c *MemoryCache) Get(ctx context.Context, key core.CacheKey) (*core.CacheEntry, error) {
	k := key.String()
	s := c.shard(k)

	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok || entry.Expired(c.now()) {
		return nil, core.ErrCacheMiss
	}
	return copyEntry(entry), nil
}

// Set stores a cache entry
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	k := entry.Key.String()
	s := c.shard(k)

	stored := copyEntry(entry)
	s.mu.Lock()
	s.entries[k] = stored
	s.mu.Unlock()
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, key core.CacheKey) error {
	k := key.String()
	s := c.shard(k)

	s.mu.Lock()
	delete(s.entries, k)
	s.mu.Unlock()
	return nil
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(ctx context.Context) error {
	now := c.now()
	expiredCount := 0

	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for k, entry := range s.entries {
			if entry.Expired(now) {
				delete(s.entries, k)
				expiredCount++
			}
		}
		s.mu.Unlock()
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func copyEntry(e *core.CacheEntry) *core.CacheEntry {
	out := *e
	out.Payload = append([]byte(nil), e.Payload...)
	return &out
}
