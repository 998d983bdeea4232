package sqltools

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// SchemaCache keeps rendered table descriptions for a bounded time. It is
// safe for concurrent use; the underlying lru.Cache does its own locking.
type SchemaCache struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewSchemaCache builds a cache holding at most maxSize tables.
func NewSchemaCache(maxSize int, ttl time.Duration) (*SchemaCache, error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}

	return &SchemaCache{
		cache: cache,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Get returns the cached description of table.
func (c *SchemaCache) Get(table string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, found := c.cache.Get(table)
	if !found {
		return "", false
	}

	entry := val.(cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(table)
		return "", false
	}

	return entry.value, true
}

// Set stores the description of table.
func (c *SchemaCache) Set(table, value string) {
	if c == nil {
		return
	}
	c.cache.Add(table, cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Purge drops every entry.
func (c *SchemaCache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}
