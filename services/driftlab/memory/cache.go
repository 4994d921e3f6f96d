// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/AleutianDrift/services/llm"
)

// EmbeddingCache is a bounded LRU in front of an Embedder, keyed on
// the exact text. Sentinel (empty) vectors from upstream failures are
// returned but never cached.
//
// The cache is process-wide: safe for concurrent use and idempotent
// under concurrent misses for the same key (the first write wins; a
// racing miss returns the vector already stored).
type EmbeddingCache struct {
	upstream llm.Embedder

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recent
	max     int
	enabled bool

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewEmbeddingCache wraps upstream with a cache of at most maxEntries
// vectors. maxEntries <= 0 disables caching entirely.
func NewEmbeddingCache(upstream llm.Embedder, maxEntries int) *EmbeddingCache {
	return &EmbeddingCache{
		upstream: upstream,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		max:      maxEntries,
		enabled:  maxEntries > 0,
	}
}

// Embed implements llm.Embedder.
func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.enabled {
		c.mu.Lock()
		if el, ok := c.entries[text]; ok {
			c.order.MoveToFront(el)
			vec := el.Value.(*cacheEntry).vector
			c.mu.Unlock()
			c.hits.Add(1)
			return vec, nil
		}
		c.mu.Unlock()
	}

	c.misses.Add(1)
	vec, err := c.upstream.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		// Upstream sentinel; do not cache.
		return vec, err
	}

	if c.enabled {
		c.mu.Lock()
		if el, ok := c.entries[text]; ok {
			// A concurrent miss already stored this key.
			c.order.MoveToFront(el)
			vec = el.Value.(*cacheEntry).vector
		} else {
			el := c.order.PushFront(&cacheEntry{key: text, vector: vec})
			c.entries[text] = el
			if c.order.Len() > c.max {
				oldest := c.order.Back()
				if oldest != nil {
					c.order.Remove(oldest)
					delete(c.entries, oldest.Value.(*cacheEntry).key)
				}
			}
		}
		c.mu.Unlock()
	}

	return vec, nil
}

// Hits returns the cache hit count.
func (c *EmbeddingCache) Hits() int64 { return c.hits.Load() }

// Misses returns the cache miss count.
func (c *EmbeddingCache) Misses() int64 { return c.misses.Load() }

// Len returns the number of cached vectors.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

var _ llm.Embedder = (*EmbeddingCache)(nil)
