package simplefin

import (
	"log"
	"sync"
	"time"
)

type rawEntry struct {
	data     []byte
	storedAt time.Time
}

// RawResponseCache holds verbatim remote responses for a short time so an
// operator can download them once.
type RawResponseCache struct {
	mu      sync.Mutex
	entries map[string]rawEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewRawResponseCache creates an empty cache whose entries expire after ttl.
func NewRawResponseCache(ttl time.Duration) *RawResponseCache {
	return &RawResponseCache{
		entries: make(map[string]rawEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Store keeps data for runID, replacing any earlier entry, and sweeps expired entries.
func (c *RawResponseCache) Store(runID string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[runID] = rawEntry{data: data, storedAt: now}

	cutoff := now.Add(-c.ttl)
	for id, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, id)
		}
	}
}

// Pop returns and removes the response for runID. Expired entries are not returned.
func (c *RawResponseCache) Pop(runID string) ([]byte, bool) {
	c.mu.Lock()
	e, ok := c.entries[runID]
	delete(c.entries, runID)
	c.mu.Unlock()

	if !ok || e.storedAt.Before(c.now().Add(-c.ttl)) {
		return nil, false
	}
	log.Printf("Retrieved and cleared raw response for sync run %s (%d bytes)", runID, len(e.data))
	return e.data, true
}

// Len reports how many entries are held, expired ones included.
func (c *RawResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
