/*
 * MIT License
 * Copyright (c) 2025 Vincent Breitmoser
 * Copyright (c) 2024-2026 Zuplu
 */

package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"
	"os"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	Value     any
	ExpiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

type MemoryCache struct {
	mu    sync.Mutex
	cache map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cache: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

// lookup evicts the entry if it is past its expiry. Caller holds mu.
func (c *MemoryCache) lookup(key string) (any, bool) {
	data, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if data.expired(time.Now()) {
		delete(c.cache, key)
		return nil, false
	}
	return data.Value, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	entry := memoryEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.cache[key] = entry
	c.mu.Unlock()
}

func (c *MemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.cache, key)
	c.mu.Unlock()
}

func (c *MemoryCache) Clear(ctx context.Context) {
	c.mu.Lock()
	clear(c.cache)
	c.mu.Unlock()
}

func (c *MemoryCache) Exists(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok
}

// Len drops expired entries and returns how many remain.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()
	return len(c.cache)
}

// Keys returns the live keys in sorted order.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeExpired()
	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *MemoryCache) purgeExpired() {
	now := time.Now()
	for k, v := range c.cache {
		if v.expired(now) {
			delete(c.cache, k)
		}
	}
}

// SaveFile writes a gzip'd gob snapshot of the live entries to path.
func (c *MemoryCache) SaveFile(path string) error {
	c.mu.Lock()
	c.purgeExpired()
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(c.cache)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		return err
	}
	if _, err := g.Write(buf.Bytes()); err != nil {
		g.Close()
		return err
	}
	return g.Close()
}

// LoadFile merges a snapshot written by SaveFile. A missing file is not an
// error; entries that expired in the meantime are skipped.
func (c *MemoryCache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	g, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer g.Close()

	var stored map[string]memoryEntry
	if err := gob.NewDecoder(g).Decode(&stored); err != nil {
		return err
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range stored {
		if v.expired(now) {
			continue
		}
		c.cache[k] = v
	}
	return nil
}
