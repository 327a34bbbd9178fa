package remote

import (
	"context"
	"github.com/disgoorg/snowflake/v2"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/fuad-daoud/discord-relay/metrics"
	"golang.org/x/sync/singleflight"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultTTL = 10 * time.Minute

// Loader fetches a guild snapshot. A nil guild with a nil error means the
// guild does not exist.
type Loader func(ctx context.Context, id snowflake.ID) (*bus.Guild, error)

type CacheStats struct {
	Hits         uint64
	Misses       uint64
	Loads        uint64
	LoadFailures uint64
	Evictions    uint64
}

type cacheEntry struct {
	guild    *bus.Guild
	accessed time.Time
}

// GuildCache is a loading cache of guild snapshots with a sliding TTL.
// Concurrent misses on one key share a single load. An Invalidate racing an
// in-flight load does not cancel it: the load still stores its result, and
// the next Get serves that entry.
type GuildCache struct {
	load    Loader
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger
	metrics metrics.Sink
	group   singleflight.Group

	mu      sync.Mutex
	entries map[snowflake.ID]*cacheEntry

	hits, misses, loads, failures, evictions atomic.Uint64
}

type CacheOption func(*GuildCache)

func WithTTL(d time.Duration) CacheOption {
	return func(c *GuildCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *GuildCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *GuildCache) {
		if logger != nil {
			c.log = logger
		}
	}
}

func WithCacheMetrics(sink metrics.Sink) CacheOption {
	return func(c *GuildCache) {
		if sink != nil {
			c.metrics = sink
		}
	}
}

func NewGuildCache(load Loader, opts ...CacheOption) *GuildCache {
	c := &GuildCache{
		load:    load,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     dlog.Discard(),
		metrics: metrics.Noop(),
		entries: make(map[snowflake.ID]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the snapshot for id, loading it on a miss. Load failures and
// unknown guilds are reported as absent and are not cached.
func (c *GuildCache) Get(ctx context.Context, id snowflake.ID) (*bus.Guild, bool) {
	if g, ok := c.lookup(id); ok {
		c.hits.Add(1)
		c.metrics.Count("cache.requests", "hit")
		return g, true
	}
	c.misses.Add(1)
	c.metrics.Count("cache.requests", "miss")

	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		if g, ok := c.lookup(id); ok {
			return g, nil
		}
		c.loads.Add(1)
		g, err := c.load(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		if g != nil {
			c.Put(g)
		}
		return g, nil
	})
	if err != nil {
		c.failures.Add(1)
		c.log.WarnContext(ctx, "Guild load failed", "guild", id, "err", err)
		return nil, false
	}
	g, _ := v.(*bus.Guild)
	return g, g != nil
}

func (c *GuildCache) lookup(id snowflake.ID) (*bus.Guild, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.Sub(e.accessed) >= c.ttl {
		delete(c.entries, id)
		c.evictions.Add(1)
		return nil, false
	}
	e.accessed = now
	return e.guild, true
}

// Put stores g, replacing any previous snapshot of the same guild.
func (c *GuildCache) Put(g *bus.Guild) {
	if g == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[g.ID] = &cacheEntry{guild: g, accessed: c.now()}
}

// Invalidate removes id immediately, regardless of its TTL.
func (c *GuildCache) Invalidate(id snowflake.ID) bool {
	c.mu.Lock()
	_, ok := c.entries[id]
	delete(c.entries, id)
	c.mu.Unlock()
	c.log.Debug("Invalidated guild", "guild", id, "present", ok)
	return ok
}

// Sweep drops every expired entry and returns how many were removed.
func (c *GuildCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.accessed) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	c.evictions.Add(uint64(removed))
	return removed
}

func (c *GuildCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *GuildCache) Stats() CacheStats {
	return CacheStats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Loads:        c.loads.Load(),
		LoadFailures: c.failures.Load(),
		Evictions:    c.evictions.Load(),
	}
}
