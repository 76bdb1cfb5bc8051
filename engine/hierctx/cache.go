package hierctx

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/phamhung075/dhafnck-mcp-sub000/engine/core"
)

// CacheEntry is one resolved inheritance document. DependenciesHash covers
// the versions of every ancestor the resolution depended on; the entry is
// served only while that hash still matches current state.
type CacheEntry struct {
	Document         map[string]any
	DependenciesHash string
	ResolutionPath   []string
	ExpiresAt        time.Time
	HitCount         int64
	invalidated      atomic.Bool
}

// InheritanceCache is the process-wide ephemeral cache of resolved context
// documents, keyed by (level, id). Reads are non-blocking; a mismatched
// dependencies hash bypasses the cache rather than blocking on refresh.
type InheritanceCache struct {
	lru *expirable.LRU[string, *CacheEntry]
	ttl time.Duration
}

func NewInheritanceCache(maxEntries int, ttl time.Duration) *InheritanceCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &InheritanceCache{
		lru: expirable.NewLRU[string, *CacheEntry](maxEntries, nil, ttl),
		ttl: ttl,
	}
}

func cacheKey(level core.ContextLevel, id core.ID) string {
	return level.String() + ":" + id.String()
}

// Get returns the cached document only when the entry is live and its
// dependencies hash equals currentHash (check-and-set semantics).
func (c *InheritanceCache) Get(level core.ContextLevel, id core.ID, currentHash string) (*CacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.lru.Get(cacheKey(level, id))
	if !ok || entry.invalidated.Load() {
		return nil, false
	}
	if entry.DependenciesHash != currentHash {
		return nil, false
	}
	atomic.AddInt64(&entry.HitCount, 1)
	return entry, true
}

// Put stores a freshly resolved document. The document is copied so later
// mutations of the resolved map cannot corrupt the cache.
func (c *InheritanceCache) Put(level core.ContextLevel, id core.ID, doc map[string]any, hash string, path []string) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(level, id), &CacheEntry{
		Document:         CopyDocument(doc),
		DependenciesHash: hash,
		ResolutionPath:   append([]string{}, path...),
		ExpiresAt:        time.Now().Add(c.ttl),
	})
}

// InvalidateNode drops every entry whose resolution path contains the
// mutated (level, id) node.
func (c *InheritanceCache) InvalidateNode(level core.ContextLevel, id core.ID) {
	if c == nil {
		return
	}
	node := cacheKey(level, id)
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		for _, step := range entry.ResolutionPath {
			if step == node {
				entry.invalidated.Store(true)
				c.lru.Remove(key)
				break
			}
		}
	}
}

// Purge drops every entry. Used at teardown.
func (c *InheritanceCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

func (c *InheritanceCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
