package service

import (
	"sync"
	"time"

	"consentd/internal/consent/models"
)

// ShadowCache holds decisions whose slot write failed, keyed by scope. An
// entry stands in for the stored record until it expires, the scope is
// cleared, or a later write succeeds.
type ShadowCache struct {
	mu      sync.RWMutex
	entries map[string]shadowEntry
	ttl     time.Duration
	now     func() time.Time
}

type shadowEntry struct {
	record    models.Record
	expiresAt time.Time
}

// NewShadowCache creates a cache whose entries live for ttl. A ttl of zero
// keeps entries until dropped.
func NewShadowCache(ttl time.Duration) *ShadowCache {
	return &ShadowCache{
		entries: make(map[string]shadowEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the scope's shadow record.
func (c *ShadowCache) Get(scope string) (*models.Record, bool) {
	c.mu.RLock()
	entry, ok := c.entries[scope]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.expired(entry) {
		c.Drop(scope)
		return nil, false
	}
	rec := entry.record
	return &rec, true
}

func (c *ShadowCache) Put(scope string, record *models.Record) {
	if record == nil {
		return
	}
	entry := shadowEntry{record: *record}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[scope] = entry
}

func (c *ShadowCache) Drop(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, scope)
}

// Sweep removes expired entries and returns how many were removed.
func (c *ShadowCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for scope, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, scope)
			removed++
		}
	}
	return removed
}

func (c *ShadowCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ShadowCache) expired(e shadowEntry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}
