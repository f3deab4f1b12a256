// Package cache provides the in-memory result cache that fronts the search index.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/podseek/internal/domain"
)

// Entry is one cached orchestration result
type Entry struct {
	Key       string
	Data      []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ResultCache is a TTL keyed store for serialized search responses.
// Keys are normalized queries (trimmed, lowercased). Safe for concurrent use.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	generation uint64
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a ResultCache
type Option func(*ResultCache)

// WithClock overrides the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) {
		c.now = now
	}
}

// New creates a cache whose entries live for defaultTTL unless Set is given an explicit TTL
func New(defaultTTL time.Duration, opts ...Option) *ResultCache {
	c := &ResultCache{
		entries:    make(map[string]*Entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the payload stored for query. Expired entries are removed on read.
func (c *ResultCache) Get(query string) ([]byte, bool) {
	key := domain.NormalizeQuery(query)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if entry.expired(c.now()) {
		c.mu.Lock()
		// another writer may have replaced it in between
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.Data, true
}

// Set stores payload under query. An optional ttl overrides the default.
func (c *ResultCache) Set(query string, data []byte, ttl ...time.Duration) {
	entry := c.newEntry(query, data, ttl)

	c.mu.Lock()
	c.entries[entry.Key] = entry
	c.mu.Unlock()
}

// Generation identifies the current invalidation epoch. Every Invalidate call advances it.
func (c *ResultCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// SetIfGeneration stores payload only if no invalidation happened since gen was read.
// It reports whether the entry was written.
func (c *ResultCache) SetIfGeneration(query string, gen uint64, data []byte, ttl ...time.Duration) bool {
	entry := c.newEntry(query, data, ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.entries[entry.Key] = entry
	return true
}

func (c *ResultCache) newEntry(query string, data []byte, ttl []time.Duration) *Entry {
	lifetime := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		lifetime = ttl[0]
	}

	now := c.now()
	return &Entry{
		Key:       domain.NormalizeQuery(query),
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
}

// Invalidate drops the given queries, or every entry when called without arguments
func (c *ResultCache) Invalidate(queries ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if len(queries) == 0 {
		n := len(c.entries)
		c.entries = make(map[string]*Entry)
		return n
	}

	removed := 0
	for _, q := range queries {
		key := domain.NormalizeQuery(q)
		if _, ok := c.entries[key]; ok {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep removes all expired entries and reports how many were dropped
func (c *ResultCache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, including expired ones not yet swept
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DefaultTTL returns the lifetime applied when Set has no explicit TTL
func (c *ResultCache) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Sweeper adapts the cache to the jobs.JobProcessor interface
type Sweeper struct {
	cache   *ResultCache
	onSweep func(removed int)
}

// NewSweeper creates a Sweeper. onSweep, if non-nil, is called after each pass that removed entries.
func NewSweeper(cache *ResultCache, onSweep func(removed int)) *Sweeper {
	return &Sweeper{cache: cache, onSweep: onSweep}
}

// ProcessJobs runs one sweep pass
func (s *Sweeper) ProcessJobs(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed := s.cache.Sweep()
	if removed > 0 && s.onSweep != nil {
		s.onSweep(removed)
	}
	return nil
}
