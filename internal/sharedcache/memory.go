package sharedcache

import (
	"context"
	"sync"

	apperrors "github.com/class-verify/pkg/errors"
)

// MemoryCache is an in-process Cache. It gives a single run cache hits for
// classes verified earlier in the same process and backs tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// Store persists data under key.
func (c *MemoryCache) Store(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return apperrors.Wrap(apperrors.CodeCacheError, key, ErrKeyExists)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	c.entries[key] = buf
	return nil
}

// Find returns the data stored under key.
func (c *MemoryCache) Find(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, true, nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
