// Package cache provides the idempotency cache for terminal USSD responses.
//
// A completed session's final response is stored under its session id for a
// bounded time, so gateway retries of a terminal request are answered
// verbatim without re-running the completing side effect.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a terminal response stays answerable after insertion.
const DefaultTTL = 5 * time.Minute

// Cache maps a session id to its cached terminal response.
type Cache interface {
	// Get returns the cached response for a session, if present and unexpired.
	Get(ctx context.Context, sessionID string) (string, bool, error)

	// Set records the terminal response for a session.
	Set(ctx context.Context, sessionID, response string) error
}

// Opts holds configuration options for cache backends.
type Opts struct {
	TTL   time.Duration
	Clock func() time.Time
}

// Option defines a configuration option for cache backends.
type Option func(*Opts)

// WithTTL overrides the entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// WithClock injects the time source, for deterministic expiry tests.
// Only the in-memory backend honors it; Redis expires server-side.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

type memoryEntry struct {
	response  string
	expiresAt time.Time
}

// MemoryCache is a per-process TTL map. Expiry is measured from insertion;
// expired entries are evicted lazily on Get.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory idempotency cache.
func NewMemoryCache(opts ...Option) *MemoryCache {
	cfg := Opts{TTL: DefaultTTL, Clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("MemoryCache created", "ttl", cfg.TTL)
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     cfg.TTL,
		now:     cfg.Clock,
	}
}

// Get returns the cached response for a session. An expired entry behaves
// as a miss and is removed.
func (c *MemoryCache) Get(_ context.Context, sessionID string) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[sessionID]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if cur, ok := c.entries[sessionID]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, sessionID)
		}
		c.mu.Unlock()
		slog.Debug("MemoryCache.Get: entry expired", "session_id", sessionID)
		return "", false, nil
	}
	return e.response, true, nil
}

// Set records the terminal response for a session.
func (c *MemoryCache) Set(_ context.Context, sessionID, response string) error {
	c.mu.Lock()
	c.entries[sessionID] = memoryEntry{response: response, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	slog.Debug("MemoryCache.Set: cached terminal response", "session_id", sessionID)
	return nil
}

// Len reports the number of live plus not-yet-evicted entries (for tests).
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
