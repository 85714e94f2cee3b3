// Package cache holds process-lifetime lookups: profile summaries by
// address, parsed layouts by raw pointer value.
//
// Entries are written once and never mutated or evicted; a later write for
// the same key replaces the earlier one. Concurrent misses for one key share
// a single load.
package cache

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

type Cache[V any] struct {
	keep func(V) bool

	mu      sync.RWMutex
	entries map[string]V
	group   singleflight.Group
}

// New creates an empty cache. When keep is non-nil, loaded values for which
// it returns false are handed to callers but not stored, so "not found"
// results are looked up again next time.
func New[V any](keep func(V) bool) *Cache[V] {
	return &Cache[V]{keep: keep, entries: make(map[string]V)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[V]) Put(key string, v V) {
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
}

// Do returns the cached value for key or loads it with load. The load runs
// detached from the caller's cancellation so other waiters still get its
// result; a caller whose ctx ends stops waiting and gets ctx.Err().
func (c *Cache[V]) Do(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		if c.keep == nil || c.keep(v) {
			c.Put(key, v)
		}
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(V)
		if !ok && res.Val != nil {
			return zero, fmt.Errorf("cache: unexpected %T for key %q", res.Val, key)
		}
		return v, nil
	}
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry.
func (c *Cache[V]) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]V)
	c.mu.Unlock()
}
