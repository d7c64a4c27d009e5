package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is used when no valid TTL is configured.
	DefaultTTL = 7200 * time.Second

	maxSweepInterval = 600 * time.Second
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache is an in-memory key-value store with per-entry TTL expiry. Values are
// stored by reference: callers must treat anything read back as immutable,
// since the archiver and request handlers may hold the same instances.
//
// No operation ever panics through to the caller. Internal faults degrade to
// a neutral result (absent, false, empty) and are logged, so a cache
// malfunction never fails a request.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration

	hits   uint64
	misses uint64

	logger *zap.Logger
	stop   chan struct{}
	once   sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger attaches a zap logger for expiry and fault events.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger.Named("MetricsCache")
		}
	}
}

// New creates a Cache with the given default TTL and starts the background
// sweep. A non-positive TTL falls back to DefaultTTL. Call Close to stop the
// sweeper.
func New(defaultTTL time.Duration, opts ...Option) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		logger:     zap.NewNop(),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.sweepLoop(c.sweepInterval())
	return c
}

// sweepInterval is a fraction of the TTL, capped so dead entries never
// linger for more than ten minutes.
func (c *Cache) sweepInterval() time.Duration {
	interval := c.defaultTTL / 5
	if interval > maxSweepInterval {
		interval = maxSweepInterval
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	defer c.guard("sweep")
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.logger.Debug("cache key expired", zap.String("key", key))
		}
	}
}

// guard absorbs panics from cache internals so callers always get a neutral
// value instead of a crash.
func (c *Cache) guard(op string) {
	if r := recover(); r != nil {
		if c.logger != nil {
			c.logger.Error("cache operation failed", zap.String("op", op), zap.Any("panic", r))
		}
	}
}

// Get returns the live value for key, or (nil, false) when absent or expired.
// Expired entries are reclaimed on the spot.
func (c *Cache) Get(key string) (value interface{}, ok bool) {
	defer c.guard("get")

	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if found && !e.expired(time.Now()) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.value, true
	}

	c.mu.Lock()
	if found {
		delete(c.entries, key)
	}
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Set stores value under key. An optional per-call TTL overrides the default.
// Returns false only on internal failure.
func (c *Cache) Set(key string, value interface{}, ttlOverride ...time.Duration) (ok bool) {
	defer c.guard("set")

	ttl := c.defaultTTL
	if len(ttlOverride) > 0 && ttlOverride[0] > 0 {
		ttl = ttlOverride[0]
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return true
}

// GetAll returns all currently-live entries. Entries already past their
// expiry are skipped even when the sweeper has not reclaimed them yet.
func (c *Cache) GetAll() map[string]interface{} {
	defer c.guard("get_all")

	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]interface{}, len(c.entries))
	for key, e := range c.entries {
		if e.expired(now) {
			continue
		}
		out[key] = e.value
	}
	return out
}

// Delete removes key, reporting whether it was present.
func (c *Cache) Delete(key string) (ok bool) {
	defer c.guard("delete")

	c.mu.Lock()
	defer c.mu.Unlock()
	_, found := c.entries[key]
	delete(c.entries, key)
	return found
}

// Flush discards every entry. Counters are kept.
func (c *Cache) Flush() {
	defer c.guard("flush")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats returns current entry and hit/miss counts.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := 0
	now := time.Now()
	for _, e := range c.entries {
		if !e.expired(now) {
			live++
		}
	}
	return Stats{Entries: live, Hits: c.hits, Misses: c.misses}
}

// Close stops the background sweeper. The cache stays usable afterwards.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}
