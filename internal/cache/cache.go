// Package cache is the identity map of a binding: at most one live object
// per URI.
//
// The cache performs no loading or eviction. Callers store an object when
// they construct it and remove it when the object is destroyed.
package cache

import (
	"slices"
	"sync"
)

// Cache maps URIs to values of type T.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{items: make(map[string]T)}
}

// Fetch returns the value stored for uri.
func (c *Cache[T]) Fetch(uri string) (T, bool) {
	c.mu.RLock()
	v, ok := c.items[uri]
	c.mu.RUnlock()
	return v, ok
}

// Store sets the value for uri, replacing any previous value.
func (c *Cache[T]) Store(uri string, v T) {
	c.mu.Lock()
	c.items[uri] = v
	c.mu.Unlock()
}

// Remove deletes uri. Returns true if it was present.
func (c *Cache[T]) Remove(uri string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[uri]; !ok {
		return false
	}
	delete(c.items, uri)
	return true
}

// Rekey moves the value stored under from to to. It fails when from is
// absent or to is already taken by a different entry.
func (c *Cache[T]) Rekey(from, to string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	if _, taken := c.items[to]; taken {
		return false
	}
	delete(c.items, from)
	c.items[to] = v
	return true
}

// Len returns the number of entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the stored URIs in lexical order.
func (c *Cache[T]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]T)
	c.mu.Unlock()
}
