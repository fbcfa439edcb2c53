// Package cache keeps the last known good read of a collection so callers can
// fall back to it while the store is unreachable.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	storedAt time.Time
	// zero means the entry never goes stale
	staleAt time.Time
}

// Snapshots is a goroutine-safe map with per-entry freshness. Stale entries
// are still returned by Last; Fresh only returns entries within their TTL.
type Snapshots[K comparable, V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[K]entry[V]
}

// now is swapped in tests.
var now = time.Now

func New[K comparable, V any](ttl time.Duration) *Snapshots[K, V] {
	return &Snapshots[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
	}
}

// Put stores value as the latest snapshot for key.
func (c *Snapshots[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := now()
	e := entry[V]{value: value, storedAt: ts}
	if c.ttl > 0 {
		e.staleAt = ts.Add(c.ttl)
	}
	c.items[key] = e
}

// Fresh returns the snapshot only while it is within its TTL.
func (c *Snapshots[K, V]) Fresh(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !e.staleAt.IsZero() && now().After(e.staleAt) {
		return zero, false
	}
	return e.value, true
}

// Last returns the most recent snapshot regardless of age, plus when it was
// stored.
func (c *Snapshots[K, V]) Last(key K) (V, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.storedAt, true
}

func (c *Snapshots[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Snapshots[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Purge drops entries stored before cutoff.
func (c *Snapshots[K, V]) Purge(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.items {
		if e.storedAt.Before(cutoff) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}
