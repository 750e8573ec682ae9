// Package querycache is a keyed in-memory cache of query results with
// coalesced fetches and explicit invalidation.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

// Cache holds query results. Entries never expire on their own; callers
// invalidate them. The zero value is not usable, use New.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	group      singleflight.Group
	now        func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry), now: time.Now}
}

// Fetcher loads the value for a key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Fetch returns the cached value for key, loading it with fn when absent or
// invalidated. Concurrent fetches of one key share a single call of fn. Errors
// are returned and never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, fn Fetcher[T]) (T, error) {
	if v, ok := lookup[T](c, key); ok {
		return v, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	// Flights are per generation so a fetch started after a clear never joins
	// one started before it.
	flight := strconv.FormatUint(gen, 10) + "/" + key
	res, err, _ := c.group.Do(flight, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A clear during the fetch wins.
		if c.generation == gen {
			c.entries[key] = &entry{value: v, fetchedAt: c.now()}
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

func lookup[T any](c *Cache, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key]
	if !ok || e.stale {
		return zero, false
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Get returns the cached value even when stale.
func Get[T any](c *Cache, key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Set stores value under key as fresh data.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{value: value, fetchedAt: c.now()}
}

// Invalidate marks key stale so the next Fetch reloads it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.stale = true
	}
}

// Remove drops key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// RemoveAll drops every entry. Fetches in flight when it is called do not
// repopulate the cache.
func (c *Cache) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.generation++
}

// FetchedAt reports when key was last loaded.
func (c *Cache) FetchedAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Len returns the number of entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
