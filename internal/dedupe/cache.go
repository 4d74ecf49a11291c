// ABOUTME: TTL cache over provider message ids for at-least-once delivery
// ABOUTME: First line of defense before the store's uniqueness constraint

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	stamp   time.Time
	element *list.Element
}

// Cache remembers recently processed provider message ids so a retried
// webhook delivery is dropped before any conversation work starts. Entries
// expire after the TTL and the cache is capped in size, with the oldest id
// evicted first.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byAge   *list.List // ids in insertion order, oldest at the front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache and starts its background sweeper.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		byAge:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Seen reports whether the id is cached and not yet expired.
func (c *Cache) Seen(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	return ok && time.Since(e.stamp) < c.ttl
}

// SeenOrMark atomically checks and records an id. Returns true when the id
// was already present (a duplicate delivery), false when it is new and now
// recorded. The single lock avoids the race a separate Seen/Mark pair has.
func (c *Cache) SeenOrMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok && time.Since(e.stamp) < c.ttl {
		return true
	}
	c.markLocked(id)
	return false
}

// Mark records an id unconditionally.
func (c *Cache) Mark(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(id)
}

// Forget drops an id so a later delivery with it is treated as new. Used
// when a marked delivery could not be handed off and the provider's retry
// must get through.
func (c *Cache) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return
	}
	c.byAge.Remove(e.element)
	delete(c.entries, id)
}

// markLocked requires c.mu held.
func (c *Cache) markLocked(id string) {
	now := time.Now()

	if e, ok := c.entries[id]; ok {
		e.stamp = now
		c.byAge.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[id] = &entry{stamp: now, element: c.byAge.PushBack(id)}
}

// evictOldest requires c.mu held.
func (c *Cache) evictOldest() {
	front := c.byAge.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.byAge.Remove(front)
	delete(c.entries, id)
}

// sweep periodically drops expired ids so the map does not grow to maxSize
// on low-traffic deployments.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweepOnce()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweepOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.entries {
		if now.Sub(e.stamp) > c.ttl {
			c.byAge.Remove(e.element)
			delete(c.entries, id)
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
