// Package querycache holds fetched server data per key with staleness,
// request sharing and versioned commits.
package querycache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vidinsight/client/internal/metrics"
)

// Entry is the cached state of one key.
type Entry[T any] struct {
	Value      T
	Err        error
	FetchedAt  time.Time
	Version    uint64
	Optimistic bool
	Stale      bool
	HasValue   bool

	// invalidatedAt is the cache version at the last Invalidate of this key.
	// Fetches started before it commit as stale.
	invalidatedAt uint64
}

// Cache stores entries of one value type. The zero value is not usable; call New.
type Cache[T any] struct {
	name    string
	metrics metrics.Recorder
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry[T]
	version uint64
	// clearedAt is the cache version at the last InvalidateAll.
	clearedAt uint64

	group singleflight.Group
}

// New returns an empty cache. name labels cache metrics.
func New[T any](name string, rec metrics.Recorder) *Cache[T] {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Cache[T]{
		name:    name,
		metrics: rec,
		now:     time.Now,
		entries: make(map[string]*Entry[T]),
	}
}

// Get returns a copy of the entry for key. Keys that were only invalidated
// and never fetched are reported as missing.
func (c *Cache[T]) Get(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || (!e.HasValue && e.Err == nil) {
		return Entry[T]{}, false
	}
	return *e, true
}

// Fresh reports whether key holds authoritative data younger than staleTime.
func (c *Cache[T]) Fresh(key string, staleTime time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked(key, staleTime)
}

func (c *Cache[T]) freshLocked(key string, staleTime time.Duration) bool {
	e, ok := c.entries[key]
	if !ok || !e.HasValue || e.Stale || e.Optimistic || e.Err != nil || staleTime <= 0 {
		return false
	}
	return c.now().Sub(e.FetchedAt) < staleTime
}

// Fetch returns the cached value for key when it is fresh, otherwise it runs
// fn. Concurrent fetches of the same key share one call. A result is
// committed only if nothing newer was committed while it was in flight;
// otherwise the newer value is returned.
func (c *Cache[T]) Fetch(ctx context.Context, key string, staleTime time.Duration, fn func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if c.freshLocked(key, staleTime) {
		value := c.entries[key].Value
		c.mu.Unlock()
		c.metrics.RecordCacheLookup(c.name, true)
		return value, nil
	}
	c.mu.Unlock()
	c.metrics.RecordCacheLookup(c.name, false)

	res, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.Lock()
		c.version++
		started := c.version
		c.mu.Unlock()

		value, err := fn(ctx)
		return c.commit(key, started, value, err)
	})
	if err != nil {
		var zero T
		if res != nil {
			return res.(T), err
		}
		return zero, err
	}
	return res.(T), nil
}

func (c *Cache[T]) commit(key string, version uint64, value T, fetchErr error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &Entry[T]{}
		c.entries[key] = e
	}
	if e.Version > version {
		return e.Value, e.Err
	}

	e.Version = version
	e.Stale = version < e.invalidatedAt || version < c.clearedAt
	if fetchErr != nil {
		e.Err = fetchErr
		return e.Value, fetchErr
	}
	e.Value = value
	e.HasValue = true
	e.Err = nil
	e.Optimistic = false
	e.FetchedAt = c.now()
	return value, nil
}

// Set writes an authoritative value for key.
func (c *Cache[T]) Set(key string, value T) {
	c.write(key, func(T, bool) (T, bool) { return value, true }, false)
}

// Update rewrites the value for key. fn receives the current value and
// whether one exists; returning false leaves the entry untouched.
func (c *Cache[T]) Update(key string, fn func(current T, ok bool) (T, bool)) {
	c.write(key, fn, false)
}

// SetOptimistic writes a provisional value for key. Any fetch that started
// before this call is discarded when it completes; the next completed fetch
// replaces the provisional value.
func (c *Cache[T]) SetOptimistic(key string, fn func(current T, ok bool) (T, bool)) {
	c.write(key, fn, true)
}

func (c *Cache[T]) write(key string, fn func(T, bool) (T, bool), optimistic bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	var current T
	if ok && e.HasValue {
		current = e.Value
	}
	next, keep := fn(current, ok && e.HasValue)
	if !keep {
		return
	}
	if !ok {
		e = &Entry[T]{}
		c.entries[key] = e
	}

	c.version++
	e.Version = c.version
	e.Value = next
	e.HasValue = true
	e.Err = nil
	e.Optimistic = optimistic
	if !optimistic {
		e.FetchedAt = c.now()
	}
}

// Invalidate marks key stale so the next Fetch goes to the server. A fetch
// already in flight still commits its value, but the entry stays stale and
// later callers do not join that call.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &Entry[T]{}
		c.entries[key] = e
	}
	c.version++
	e.invalidatedAt = c.version
	e.Stale = true
	c.group.Forget(key)
}

// InvalidateAll marks every entry stale, including keys whose first fetch is
// still in flight.
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.clearedAt = c.version
	for key, e := range c.entries {
		e.Stale = true
		c.group.Forget(key)
	}
}

// Remove forgets key entirely.
func (c *Cache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Keys returns the cached keys.
func (c *Cache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.HasValue && e.Err == nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}
