package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bicho/events"
	"bicho/models"

	log "github.com/sirupsen/logrus"
)

// DefaultHouseCacheTTL is how long a fetched house list is served before refreshing
const DefaultHouseCacheTTL = 3 * time.Hour

// houseSnapshot is an immutable pair published atomically by HouseCache
type houseSnapshot struct {
	houses    []models.House
	fetchedAt time.Time
}

// HouseCache serves the upstream house list, refreshing it at most once per TTL.
// Reads of a fresh list take no lock; refreshes are serialised.
type HouseCache struct {
	fetcher   HouseFetcher
	ttl       time.Duration
	publisher events.Publisher
	now       func() time.Time

	current atomic.Pointer[houseSnapshot]
	mu      sync.Mutex
}

// HouseCacheOption configures a HouseCache
type HouseCacheOption func(*HouseCache)

// WithClock replaces the wall clock used for expiry
func WithClock(now func() time.Time) HouseCacheOption {
	return func(c *HouseCache) {
		c.now = now
	}
}

// WithRefreshPublisher publishes a HouseCacheRefreshedEvent after every refresh
func WithRefreshPublisher(publisher events.Publisher) HouseCacheOption {
	return func(c *HouseCache) {
		c.publisher = publisher
	}
}

// NewHouseCache creates an empty cache; the first Get fetches
func NewHouseCache(fetcher HouseFetcher, ttl time.Duration, opts ...HouseCacheOption) *HouseCache {
	if ttl <= 0 {
		ttl = DefaultHouseCacheTTL
	}
	c := &HouseCache{
		fetcher:   fetcher,
		ttl:       ttl,
		publisher: events.NoopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached house list, fetching it when missing or expired.
// A failed refresh leaves the previous list in place.
func (c *HouseCache) Get(ctx context.Context) ([]models.House, error) {
	if snap := c.fresh(); snap != nil {
		return copyHouses(snap.houses), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited
	if snap := c.fresh(); snap != nil {
		return copyHouses(snap.houses), nil
	}

	houses, err := c.fetcher.FetchHouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh house list: %w", err)
	}

	snap := &houseSnapshot{
		houses:    copyHouses(houses),
		fetchedAt: c.now(),
	}
	c.current.Store(snap)

	log.WithFields(log.Fields{
		"houses": len(houses),
		"ttl":    c.ttl,
	}).Info("Refreshed house list")

	c.publisher.Publish(ctx, events.HouseCacheRefreshedEvent{
		Houses:    len(houses),
		FetchedAt: snap.fetchedAt,
	})

	return copyHouses(snap.houses), nil
}

// Invalidate drops the cached list so the next Get fetches again
func (c *HouseCache) Invalidate() {
	c.current.Store(nil)
}

// FetchedAt returns when the cached list was fetched, or the zero time when empty
func (c *HouseCache) FetchedAt() time.Time {
	if snap := c.current.Load(); snap != nil {
		return snap.fetchedAt
	}
	return time.Time{}
}

func (c *HouseCache) fresh() *houseSnapshot {
	snap := c.current.Load()
	if snap == nil || c.now().Sub(snap.fetchedAt) >= c.ttl {
		return nil
	}
	return snap
}

func copyHouses(houses []models.House) []models.House {
	out := make([]models.House, len(houses))
	copy(out, houses)
	return out
}
