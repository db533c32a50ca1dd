// Package cache keeps recommendation details in memory for a short time so
// repeated views of an activity do not hit the recommendation service.
package cache

import (
	"sync"
	"time"

	"example.com/fitness/internal/domain"
)

// NoopCache never stores anything.
type NoopCache struct{}

// Get implements domain.DetailCache.
func (NoopCache) Get(string) (*domain.ActivityDetail, bool) { return nil, false }

// Put implements domain.DetailCache.
func (NoopCache) Put(string, *domain.ActivityDetail) {}

// Clear implements domain.DetailCache.
func (NoopCache) Clear() {}

type entry struct {
	detail  domain.ActivityDetail
	expires time.Time
}

// TTLCache expires entries ttl after they were stored.
type TTLCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// New returns a TTLCache, or a NoopCache when ttl is not positive.
func New(ttl time.Duration) domain.DetailCache {
	if ttl <= 0 {
		return NoopCache{}
	}
	return NewTTLCache(ttl)
}

// NewTTLCache constructs a TTLCache.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Get returns a copy of the stored detail while it is fresh.
func (c *TTLCache) Get(key string) (*domain.ActivityDetail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	detail := e.detail
	return &detail, true
}

// Put stores a copy of detail.
func (c *TTLCache) Put(key string, detail *domain.ActivityDetail) {
	if detail == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{detail: *detail, expires: c.now().Add(c.ttl)}
}

// Clear drops every entry.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of stored entries, fresh or not.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
