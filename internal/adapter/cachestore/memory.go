package cachestore

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultEntriesPerNamespace = 1024

// MemoryCache is the single-process fallback backend: one bounded LRU
// per namespace with per-entry expiry checked on read.
type MemoryCache struct {
	mu         sync.Mutex
	size       int
	namespaces map[string]*lru.Cache[string, memoryEntry]

	now func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a cache holding at most size entries per
// namespace. A non-positive size uses the default.
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = defaultEntriesPerNamespace
	}
	return &MemoryCache{
		size:       size,
		namespaces: map[string]*lru.Cache[string, memoryEntry]{},
		now:        time.Now,
	}
}

func (c *MemoryCache) namespace(name string) *lru.Cache[string, memoryEntry] {
	if cached, ok := c.namespaces[name]; ok {
		return cached
	}
	// lru.New only errors on a non-positive size, which the constructor
	// already rules out.
	cached, _ := lru.New[string, memoryEntry](c.size)
	c.namespaces[name] = cached
	return cached
}

func (c *MemoryCache) Get(_ context.Context, namespace, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns := c.namespace(namespace)
	entry, ok := ns.Get(key)
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		ns.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, namespace, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.namespace(namespace).Add(key, entry)
}
