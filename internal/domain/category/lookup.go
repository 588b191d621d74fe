package category

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Lookup resolves category names to ids, caching hits and misses.
type Lookup struct {
	repo  Repository
	cache *ristretto.Cache
	ttl   time.Duration
}

// cached value for a name that has no category
const missing int64 = -1

// NewLookup creates a cached name lookup. ttl bounds how long a renamed or
// newly created category can be reported stale.
func NewLookup(repo Repository, ttl time.Duration) (*Lookup, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000,
		MaxCost:     1000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create category cache: %w", err)
	}
	return &Lookup{repo: repo, cache: cache, ttl: ttl}, nil
}

// FindIDByNames returns the id of the first name that exists, or nil.
// Lookup errors are logged and treated as a miss.
func (l *Lookup) FindIDByNames(ctx context.Context, names ...string) *int64 {
	for _, name := range names {
		id, err := l.findID(ctx, name)
		if err != nil {
			log.Printf("Category lookup for %q failed: %v", name, err)
			continue
		}
		if id != nil {
			return id
		}
	}
	return nil
}

func (l *Lookup) findID(ctx context.Context, name string) (*int64, error) {
	key := strings.ToLower(name)
	if v, ok := l.cache.Get(key); ok {
		id := v.(int64)
		if id == missing {
			return nil, nil
		}
		return &id, nil
	}

	id, err := l.repo.FindIDByName(ctx, name)
	if err != nil {
		return nil, err
	}
	val := missing
	if id != nil {
		val = *id
	}
	l.cache.SetWithTTL(key, val, 1, l.ttl)
	return id, nil
}

// Close releases the cache goroutines.
func (l *Lookup) Close() {
	l.cache.Close()
}
