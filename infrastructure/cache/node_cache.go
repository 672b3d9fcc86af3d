package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
)

// Recorder receives hit and miss notifications, usually the metrics collector
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// NodeCache is a mutex-guarded map of loaded nodes. One instance is meant
// to live for a single request or CLI invocation.
type NodeCache struct {
	mu       sync.RWMutex
	items    map[valueobjects.BfGid]cacheItem
	ttl      time.Duration
	recorder Recorder

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheItem struct {
	node      *entities.Node
	expiresAt time.Time
}

var _ ports.NodeCache = (*NodeCache)(nil)

// NewNodeCache creates a cache whose entries never expire
func NewNodeCache() *NodeCache {
	return NewNodeCacheWithTTL(0, nil)
}

// NewNodeCacheWithTTL creates a cache whose entries expire after ttl.
// A zero ttl disables expiry; recorder may be nil.
func NewNodeCacheWithTTL(ttl time.Duration, recorder Recorder) *NodeCache {
	return &NodeCache{
		items:    make(map[valueobjects.BfGid]cacheItem),
		ttl:      ttl,
		recorder: recorder,
	}
}

// Get retrieves a node from cache
func (c *NodeCache) Get(gid valueobjects.BfGid) (*entities.Node, bool) {
	c.mu.RLock()
	item, ok := c.items[gid]
	c.mu.RUnlock()

	if ok && !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		ok = false
	}

	if ok {
		c.hits.Add(1)
		if c.recorder != nil {
			c.recorder.RecordCacheHit()
		}
		return item.node, true
	}

	c.misses.Add(1)
	if c.recorder != nil {
		c.recorder.RecordCacheMiss()
	}
	return nil, false
}

// Set stores a node under gid
func (c *NodeCache) Set(gid valueobjects.BfGid, node *entities.Node) {
	if node == nil {
		return
	}
	item := cacheItem{node: node}
	if c.ttl > 0 {
		item.expiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.items[gid] = item
	c.mu.Unlock()
}

// Delete removes a node from cache
func (c *NodeCache) Delete(gid valueobjects.BfGid) {
	c.mu.Lock()
	delete(c.items, gid)
	c.mu.Unlock()
}

// Clear removes all nodes
func (c *NodeCache) Clear() {
	c.mu.Lock()
	c.items = make(map[valueobjects.BfGid]cacheItem)
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included
func (c *NodeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns hit and miss counts
func (c *NodeCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
