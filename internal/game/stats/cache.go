package stats

import (
	"fmt"
	"slices"
	"sync"
)

// Cache memoizes the derived stats of one entity. Modifier sources (equipment,
// active effects) register under a string key; resolution folds them in sorted
// key order so the result never depends on registration timing.
//
// Combat code must call Resolve before reading; Current panics if the cache
// has never been resolved, which flags a wiring bug rather than serving zeros.
type Cache struct {
	mu       sync.RWMutex
	attrs    AttributeSet
	sources  map[string][]Modifier
	dirty    bool
	resolved bool
	version  uint64
	lastTick int64
	stats    DerivedStats
}

// NewCache creates a cache over the given attribute set. The first Resolve
// performs the initial computation.
func NewCache(attrs AttributeSet) *Cache {
	return &Cache{
		attrs:   attrs,
		sources: make(map[string][]Modifier),
		dirty:   true,
	}
}

// Attributes returns the current base attribute set.
func (c *Cache) Attributes() AttributeSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attrs
}

// SetAttributes replaces the base attributes and marks the cache dirty.
func (c *Cache) SetAttributes(attrs AttributeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attrs = attrs
	c.dirty = true
}

// AddSource registers (or replaces) the modifier list contributed by one
// source key and marks the cache dirty.
func (c *Cache) AddSource(key string, mods []Modifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[key] = slices.Clone(mods)
	c.dirty = true
}

// RemoveSource drops a source's modifiers. Removing an absent key is a no-op.
func (c *Cache) RemoveSource(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sources[key]; !ok {
		return
	}
	delete(c.sources, key)
	c.dirty = true
}

// Invalidate forces the next Resolve to recompute.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = true
}

// Resolve returns the derived stats, recomputing only when dirty.
// tick is recorded for diagnostics; resolving twice in one tick is fine.
func (c *Cache) Resolve(tick int64) (DerivedStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty && c.resolved {
		return c.stats, nil
	}

	keys := make([]string, 0, len(c.sources))
	for k := range c.sources {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var mods []Modifier
	for _, k := range keys {
		mods = append(mods, c.sources[k]...)
	}

	d, err := ComputeDerived(c.attrs, mods)
	if err != nil {
		return DerivedStats{}, err
	}

	c.stats = d
	c.dirty = false
	c.resolved = true
	c.version++
	c.lastTick = tick
	return d, nil
}

// Current returns the last resolved stats without recomputing.
// Panics if Resolve has never succeeded: reading an unresolved cache is a
// programming error, not a recoverable condition.
func (c *Cache) Current() DerivedStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.resolved {
		panic("stats: cache read before first resolve")
	}
	return c.stats
}

// Version increments on every recomputation; consumers can use it to detect
// change without comparing full stat blocks.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Dirty reports whether the next Resolve will recompute.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// SourceCount reports how many modifier sources are registered (for tests
// and debug dumps).
func (c *Cache) SourceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

// LastResolveTick reports when the cache last recomputed.
func (c *Cache) LastResolveTick() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTick
}

// DebugString dumps the cache state for logs.
func (c *Cache) DebugString() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("sources=%d dirty=%v version=%d lastTick=%d", len(c.sources), c.dirty, c.version, c.lastTick)
}
