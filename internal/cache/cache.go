// Package cache stores per-source availability lookups in process memory.
//
// Entries are keyed by (identifier, source). A stored nil record is a
// negative result ("source checked, nothing available") and is distinct
// from an absent entry. Expired entries are removed lazily when read.
package cache

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/bookhound/internal/books"
	"github.com/lepinkainen/bookhound/internal/metrics"
)

// DefaultTTL is used when the cache is created without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// Entry is a cached lookup. Data is nil for a negative result.
type Entry struct {
	Data      *books.AvailabilityRecord
	ExpiresAt time.Time
}

// Stats summarizes the cache contents at one instant.
type Stats struct {
	Size    int `json:"size"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// Cache is a thread-safe TTL cache for availability records.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache whose entries live for defaultTTL unless
// SetWithTTL says otherwise. A non-positive defaultTTL selects DefaultTTL.
func New(defaultTTL time.Duration, opts ...Option) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the cache key for an identifier and source name.
func Key(identifier, source string) string {
	return identifier + ":" + source
}

// DefaultTTL returns the TTL applied by Set.
func (c *Cache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns the cached record and true when a live entry exists.
// The record may be nil for a cached negative result. An expired entry is
// deleted and reported as absent.
func (c *Cache) Get(identifier, source string) (*books.AvailabilityRecord, bool) {
	key := Key(identifier, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, false
	}

	if c.expired(entry) {
		delete(c.entries, key)
		metrics.CacheEntries.Set(float64(len(c.entries)))
		metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
		slog.Debug("Cache entry expired", "key", key)
		return nil, false
	}

	if entry.Data == nil {
		metrics.CacheLookups.WithLabelValues(metrics.CacheNegativeHit).Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
	}
	return entry.Data, true
}

// Set stores record with the default TTL, replacing any existing entry.
func (c *Cache) Set(identifier, source string, record *books.AvailabilityRecord) {
	c.SetWithTTL(identifier, source, record, c.defaultTTL)
}

// SetWithTTL stores record with an explicit TTL. A TTL of zero produces an
// entry that is already expired on the next read.
func (c *Cache) SetWithTTL(identifier, source string, record *books.AvailabilityRecord, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	var stored *books.AvailabilityRecord
	if record != nil {
		cp := *record
		stored = &cp
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[Key(identifier, source)] = Entry{
		Data:      stored,
		ExpiresAt: c.now().Add(ttl),
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// Invalidate removes one entry and reports whether it existed.
func (c *Cache) Invalidate(identifier, source string) bool {
	key := Key(identifier, source)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return true
}

// InvalidateByIdentifier removes every source's entry for identifier.
func (c *Cache) InvalidateByIdentifier(identifier string) int {
	prefix := identifier + ":"
	return c.deleteMatching(func(key string, _ Entry) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// InvalidateBySource removes every entry produced by source.
func (c *Cache) InvalidateBySource(source string) int {
	suffix := ":" + source
	return c.deleteMatching(func(key string, _ Entry) bool {
		return strings.HasSuffix(key, suffix)
	})
}

// PruneExpired removes all expired entries and returns how many were removed.
func (c *Cache) PruneExpired() int {
	removed := c.deleteMatching(func(_ string, e Entry) bool {
		return c.expired(e)
	})
	if removed > 0 {
		slog.Info("Pruned expired cache entries", "count", removed)
	}
	return removed
}

// Clear removes every entry and returns how many there were.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]Entry)
	metrics.CacheEntries.Set(0)
	slog.Info("Cache cleared", "rows_deleted", n)
	return n
}

// Stats counts live and expired entries without removing anything.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Size: len(c.entries)}
	for _, e := range c.entries {
		if c.expired(e) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	return stats
}

func (c *Cache) deleteMatching(match func(key string, e Entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if match(key, e) {
			delete(c.entries, key)
			removed++
		}
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return removed
}

// expired must be called with c.mu held.
func (c *Cache) expired(e Entry) bool {
	return !c.now().Before(e.ExpiresAt)
}
