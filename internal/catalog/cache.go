// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package catalog

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ActionCache caches (method, path) -> action resolutions so hot paths skip
// repeated pattern matching. Implementations are best-effort: a failing or
// stale cache only costs a store round trip, never correctness, because
// registration invalidates the affected method's entries (one cache
// generation; concurrent readers may observe pre- or post-invalidation
// state).
type ActionCache interface {
	// Get returns the cached action and whether it was present.
	Get(ctx context.Context, method, path string) (string, bool)

	// Set stores a resolution.
	Set(ctx context.Context, method, path, action string)

	// InvalidateMethod drops every entry for the method.
	InvalidateMethod(ctx context.Context, method string)

	// Close releases cache resources.
	Close()
}

// memoryActionCache is a TTL'd in-process ActionCache.
type memoryActionCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]memoryCacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type memoryCacheItem struct {
	action    string
	expiresAt time.Time
}

// NewMemoryActionCache creates an in-process action cache. A non-positive
// TTL falls back to 5 minutes.
func NewMemoryActionCache(ttl time.Duration) ActionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &memoryActionCache{
		ttl:      ttl,
		items:    make(map[string]memoryCacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func cacheKey(method, path string) string {
	return method + ":" + path
}

func (c *memoryActionCache) Get(_ context.Context, method, path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[cacheKey(method, path)]
	if !ok || time.Now().After(item.expiresAt) {
		return "", false
	}
	return item.action, true
}

func (c *memoryActionCache) Set(_ context.Context, method, path, action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[cacheKey(method, path)] = memoryCacheItem{
		action:    action,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *memoryActionCache) InvalidateMethod(_ context.Context, method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := method + ":"
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// cleanup periodically removes expired items.
func (c *memoryActionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *memoryActionCache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
