// Package dedup collapses concurrent identical requests onto a single
// in-flight producer per key, and composes that guarantee with a TTL
// cache for read-through fetching.
package dedup

import (
	"sync"

	"github.com/pixzlo/bridge/pkg/cache"
)

type call[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Group guarantees at most one concurrent producer invocation per key.
// Callers arriving while a producer for the same key is in flight block
// until it settles and receive the identical value or error. The
// registration is removed on settlement, so later callers get a fresh
// producer run.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// NewGroup creates an empty Group.
func NewGroup[V any]() *Group[V] {
	return &Group[V]{calls: make(map[string]*call[V])}
}

// Do executes fn under key, sharing the result with every concurrent
// caller for the same key.
func (g *Group[V]) Do(key string, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.val, c.err
	}

	c := &call[V]{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	// A Forget during the producer run replaces the registration;
	// only remove our own.
	if g.calls[key] == c {
		delete(g.calls, key)
	}
	g.mu.Unlock()

	close(c.done)
	return c.val, c.err
}

// Forget detaches any in-flight call for key so the next Do starts a
// fresh producer. Callers already waiting on the old call still receive
// its result.
func (g *Group[V]) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.calls, key)
}

// ForgetAll detaches every in-flight call.
func (g *Group[V]) ForgetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = make(map[string]*call[V])
}

// Fetcher composes a Cache with a Group: reads are served from cache,
// misses are deduplicated, and only successful fetches populate the
// cache. Invalidation revokes in-flight fetches too: their result is
// still delivered to the callers already waiting on them, but it no
// longer populates the cache. Generations track revocation; a fetch
// started under an older generation lost the right to cache.
type Fetcher[V any] struct {
	cache *cache.Cache[V]
	group *Group[V]

	mu   sync.Mutex
	gens map[string]uint64
	all  uint64
}

// NewFetcher creates a Fetcher over the given cache.
func NewFetcher[V any](c *cache.Cache[V]) *Fetcher[V] {
	return &Fetcher[V]{
		cache: c,
		group: NewGroup[V](),
		gens:  make(map[string]uint64),
	}
}

func (f *Fetcher[V]) epoch(key string) (uint64, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gens[key], f.all
}

// GetOrFetch returns the cached value for key, or runs fn (deduplicated
// per key) and caches the result on success. A failed fetch leaves the
// cache untouched so the next attempt starts clean.
func (f *Fetcher[V]) GetOrFetch(key string, fn func() (V, error)) (V, error) {
	if v, ok := f.cache.Get(key); ok {
		return v, nil
	}

	return f.group.Do(key, func() (V, error) {
		// another caller may have populated the cache while this
		// one waited for the group lock
		if v, ok := f.cache.Get(key); ok {
			return v, nil
		}

		gen, all := f.epoch(key)

		v, err := fn()
		if err != nil {
			return v, err
		}

		// An invalidation issued while the fetch was in flight makes
		// this result stale: deliver it to the waiting callers but
		// keep it out of the cache.
		f.mu.Lock()
		if f.gens[key] == gen && f.all == all {
			f.cache.Set(key, v)
		}
		f.mu.Unlock()

		return v, nil
	})
}

// Invalidate evicts key and revokes any in-flight fetch for it, so a
// settlement racing the invalidation cannot repopulate the cache with
// a pre-invalidation value.
func (f *Fetcher[V]) Invalidate(key string) {
	f.mu.Lock()
	f.gens[key]++
	f.mu.Unlock()

	f.cache.Delete(key)
	f.group.Forget(key)
}

// InvalidateAll clears the cache and revokes every in-flight fetch.
func (f *Fetcher[V]) InvalidateAll() {
	f.mu.Lock()
	f.all++
	f.mu.Unlock()

	f.cache.Clear()
	f.group.ForgetAll()
}

// Cache exposes the underlying cache for reads and sweeping. Evicting
// through it directly does not revoke in-flight fetches; use
// Invalidate or InvalidateAll for that.
func (f *Fetcher[V]) Cache() *cache.Cache[V] {
	return f.cache
}
