// Package cache is an in-memory response cache for the hot public read
// endpoints. Entries are keyed by a hash of the request line and expire
// after a fixed TTL; writes to the API invalidate whole path prefixes.
package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type entry struct {
	path        string
	body        []byte
	contentType string
	expiresAt   time.Time
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
	go func() {
		for {
			time.Sleep(ttl)
			c.sweep()
		}
	}()
	return c
}

// Key hashes the request line into a fixed-size cache key.
func Key(method, path, rawQuery string) string {
	sum := xxhash.Sum64String(method + " " + path + "?" + rawQuery)
	return strconv.FormatUint(sum, 16)
}

func (c *Cache) Get(key string) ([]byte, string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, "", false
	}
	return e.body, e.contentType, true
}

func (c *Cache) Set(key, path string, body []byte, contentType string) {
	c.mu.Lock()
	c.entries[key] = entry{
		path:        path,
		body:        body,
		contentType: contentType,
		expiresAt:   time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// InvalidatePrefix drops every cached response whose path starts with prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(e.path, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) sweep() {
	now := time.Now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}
