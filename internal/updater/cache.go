// Package updater implements the subscription update pipeline: conditional
// feed fetching deduplicated through a per-run cache, diffing of feed items
// against each subscription's watermark, and the fan-out that updates many
// users concurrently and merges results back into the store.
package updater

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/trustmaster/telerss/internal/feed"
)

// CachedFeed is one fetched and parsed feed document together with its
// revalidation metadata. Within a run at most one instance exists per feed
// URL.
type CachedFeed struct {
	Title     string
	Items     []feed.Item
	ETag      string
	FetchedAt time.Time
}

// Cache holds feeds already fetched during the current run so that
// subscriptions sharing a URL reuse one retrieval and one parse. A cache
// lives for exactly one coordinator run and carries no state across runs,
// so no eviction is needed: its size is bounded by the number of distinct
// feed URLs touched in the run.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*CachedFeed

	// flight collapses concurrent retrievals of the same URL into one
	// network call. Failed and not-modified retrievals are forgotten on
	// completion, so later subscriptions sharing the URL retry.
	flight singleflight.Group
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CachedFeed)}
}

func (c *Cache) Lookup(feedURL string) (*CachedFeed, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.entries[feedURL]

	return cached, ok
}

func (c *Cache) Store(feedURL string, cached *CachedFeed) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[feedURL] = cached
}
