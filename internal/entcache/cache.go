// Package entcache is a keyed, TTL-based cache in front of the entitlement
// store. It deduplicates concurrent fetches for the same key (request
// coalescing) and supports explicit invalidation per key or per user.
package entcache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"subscription-tracker/internal/infra/metrics"
)

// FetchFunc loads a value from the underlying store on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
	userID    string
}

// flight is the in-flight marker: at most one per key while a fetch runs.
// done is closed when the fetch settles; val and err are readable after that.
type flight[T any] struct {
	done   chan struct{}
	userID string
	val    T
	err    error
}

// Options configure one cache instance. Each resource kind gets its own
// instance with its own TTL (plan: long, quota: short).
type Options struct {
	// Name labels metrics and log lines, e.g. "plan" or "quota".
	Name string
	// TTL bounds entry freshness. Zero or negative disables time-based
	// expiry; entries then live until explicitly invalidated.
	TTL time.Duration
	// FetchTimeout bounds a single underlying fetch. Defaults to 10s.
	FetchTimeout time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

type Cache[T any] struct {
	name         string
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger

	mu      sync.Mutex
	entries map[string]entry[T]
	flights map[string]*flight[T]
}

func New[T any](opts Options, logger *zerolog.Logger) *Cache[T] {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache[T]{
		name:         opts.Name,
		ttl:          opts.TTL,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Clock,
		log:          logger.With().Str("cache", opts.Name).Logger(),
		entries:      make(map[string]entry[T]),
		flights:      make(map[string]*flight[T]),
	}
}

// Get returns the cached value for key if a valid entry exists, otherwise
// performs exactly one underlying fetch no matter how many callers arrive
// concurrently: the first installs the in-flight marker, the rest subscribe
// to its completion and receive the same value or error. Failed fetches are
// never cached, so the next call retries.
//
// A caller whose ctx ends stops waiting and gets ctx.Err(), but the fetch
// itself runs on a detached context and still completes and writes its result
// normally.
func (c *Cache[T]) Get(ctx context.Context, key, userID string, fetch FetchFunc[T]) (T, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.validLocked(e, userID) {
		c.mu.Unlock()
		metrics.IncCacheRequest(c.name, "hit")
		return e.value, nil
	}
	if fl, ok := c.flights[key]; ok {
		c.mu.Unlock()
		metrics.IncCacheRequest(c.name, "coalesced")
		return c.await(ctx, fl)
	}
	fl := &flight[T]{done: make(chan struct{}), userID: userID}
	c.flights[key] = fl
	c.mu.Unlock()
	metrics.IncCacheRequest(c.name, "miss")

	go func() {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		val, err := fetch(fctx)
		c.settle(key, fl, userID, val, err)
	}()

	return c.await(ctx, fl)
}

func (c *Cache[T]) await(ctx context.Context, fl *flight[T]) (T, error) {
	select {
	case <-fl.done:
		return fl.val, fl.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// settle resolves the flight and, when the marker is still ours, publishes
// the entry. A fetch that lost its marker to an invalidation (or a newer
// fetch) still delivers its result to subscribed callers but never overwrites
// the cache, so a slow stale fetch cannot clobber a fresher entry.
func (c *Cache[T]) settle(key string, fl *flight[T], userID string, val T, err error) {
	c.mu.Lock()
	if c.flights[key] == fl {
		delete(c.flights, key)
		if err == nil {
			c.entries[key] = entry[T]{value: val, fetchedAt: c.now(), userID: userID}
		}
	}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.SetCacheEntries(c.name, n)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("fetch failed; not cached")
	}
	fl.val, fl.err = val, err
	close(fl.done)
}

func (c *Cache[T]) validLocked(e entry[T], userID string) bool {
	if e.userID != userID {
		return false
	}
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(e.fetchedAt) < c.ttl
}

// Invalidate removes the entry and any in-flight marker for key, forcing the
// next Get to fetch. Callers already attached to an in-flight fetch still
// receive its outcome; the orphaned fetch just no longer writes the entry.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	delete(c.flights, key)
	n := len(c.entries)
	c.mu.Unlock()
	metrics.SetCacheEntries(c.name, n)
}

// InvalidateUser removes every entry and in-flight marker belonging to a
// user. Used on logout or user switch.
func (c *Cache[T]) InvalidateUser(userID string) {
	c.mu.Lock()
	for k, e := range c.entries {
		if e.userID == userID {
			delete(c.entries, k)
		}
	}
	for k, fl := range c.flights {
		if fl.userID == userID {
			delete(c.flights, k)
		}
	}
	n := len(c.entries)
	c.mu.Unlock()
	metrics.SetCacheEntries(c.name, n)
}

// Len reports the number of resident entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
