// Package cache provides a time-bounded store that shields the upstream
// fetch from repeated calls and serves stale data when a refresh fails.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourorg/solana-yield-optimizer/internal/model"
)

// Freshness tags a cache result so callers can distinguish a served-stale
// or substituted dataset from a fresh one instead of getting a silent
// substitution.
type Freshness int

// Cache result freshness states.
const (
	// Fresh means the payload came from a fetch within the TTL window
	Fresh Freshness = iota
	// Stale means the refresh failed and an expired entry was served
	Stale
	// Degraded means the fetch substituted a fallback dataset for a
	// rejected one; the tag sticks to the entry for its whole TTL window
	Degraded
)

// FetchFunc produces a fresh dataset or fails. The bool reports whether
// the returned dataset is a degraded substitute rather than live data.
type FetchFunc func(ctx context.Context) ([]model.Opportunity, bool, error)

// entry is a single stored dataset. Entries are replaced wholesale on
// refresh and never partially updated.
type entry struct {
	payload   []model.Opportunity
	fetchedAt time.Time
	degraded  bool
}

// Cache is a keyed TTL store. The clock is injected so TTL expiry can be
// tested deterministically. Concurrent callers observing a miss may each
// trigger a redundant fetch; there is no single-flight deduplication.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a Cache with the given TTL and the wall clock.
func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a Cache with a caller-controlled clock.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     now,
	}
}

// GetOrFetch returns the stored payload for key when it is still within
// the TTL window. Otherwise it invokes fetchFn: on success the entry is
// replaced and the fresh payload returned; on failure an existing stale
// entry is served with the Stale tag, and only when no entry exists at
// all does the error propagate.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc) ([]model.Opportunity, Freshness, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		payload, degraded := e.payload, e.degraded
		c.mu.Unlock()
		logrus.Debug("Serving cached yield data")
		if degraded {
			return payload, Degraded, nil
		}
		return payload, Fresh, nil
	}
	c.mu.Unlock()

	// Fetch outside the lock so a slow upstream does not block readers
	// of other keys. A concurrent refresh of the same key is redundant
	// but harmless: last write wins wholesale.
	payload, degraded, err := fetchFn(ctx)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[key]; ok {
			logrus.WithField("error", err.Error()).Warn("Fetch failed, serving stale cache data")
			return e.payload, Stale, nil
		}
		return nil, Fresh, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{payload: payload, fetchedAt: c.now(), degraded: degraded}
	c.mu.Unlock()
	if degraded {
		return payload, Degraded, nil
	}
	return payload, Fresh, nil
}

// Info describes the current state of a cache slot for health reporting.
type Info struct {
	Populated   bool      `json:"populated"`
	RecordCount int       `json:"record_count"`
	FetchedAt   time.Time `json:"fetched_at,omitempty"`
	Expired     bool      `json:"expired"`
	Degraded    bool      `json:"degraded"`
}

// Inspect reports the state of the entry for key without touching it.
func (c *Cache) Inspect(key string) Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Info{}
	}
	return Info{
		Populated:   true,
		RecordCount: len(e.payload),
		FetchedAt:   e.fetchedAt,
		Expired:     c.now().Sub(e.fetchedAt) >= c.ttl,
		Degraded:    e.degraded,
	}
}
