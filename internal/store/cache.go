package store

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// searchCache memoises search results for a short TTL so that a burst of
// identical retrievals (one roleplay scene triggering the same lookup turn
// after turn) hits Postgres once. Cache hits bypass access-count bumps;
// the counter tracks distinct retrievals, not burst repeats.
type searchCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	pages   []Page
	expires time.Time
}

func newSearchCache(ttl time.Duration) *searchCache {
	return &searchCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *searchCache) get(key string) ([]Page, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.pages, true
}

func (c *searchCache) put(key string, pages []Page) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Lazy sweep keeps the map from accumulating dead entries between
	// ingest runs.
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{pages: pages, expires: now.Add(c.ttl)}
}

// clear empties the cache; called after every content write so readers never
// see stale pages longer than one upsert.
func (c *searchCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func cacheKey(q string, opts SearchOptions) string {
	return fmt.Sprintf("%s|%s|%s|%d|%t|%s",
		strings.ToLower(q), opts.PageType, opts.ShipName, opts.Limit,
		opts.ForceMissionLogsOnly, strings.Join(opts.Categories, ","))
}
