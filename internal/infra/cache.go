// Package infra provides shared infrastructure for the engine: the
// optional analysis result cache with its in-memory and Redis backends.
package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abralabs/abra/pkg/models"
)

// Cache is the optional result store the engine may consult before
// recomputing channel analytics. The engine owns neither the backend
// nor its timeout policy: a miss and a failure look identical, so no
// backend outage can change an analysis result beyond recomputation.
type Cache interface {
	// Get returns the cached payload for key, or false on miss/failure.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores payload under key for ttl. Failures are swallowed.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// Key builds the canonical cache key for one channel of one entity over
// a date range.
func Key(entityID string, channel models.Channel, dateRange string) string {
	return fmt.Sprintf("abra:%s:%s:%s", entityID, channel, dateRange)
}

// --- In-memory backend ---

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is a thread-safe in-memory cache with per-entry TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemoryCache creates a cache with the given default TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get retrieves a payload. Expired entries are a miss.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.payload, true
}

// Set stores a payload; a non-positive ttl falls back to the default.
func (c *MemoryCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Cleanup removes expired entries. Call periodically from the owner.
func (c *MemoryCache) Cleanup() {
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of live entries, expired included until the
// next Cleanup.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
