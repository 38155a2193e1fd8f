// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package cache holds small in-process caches.
package cache

import (
	"sync"
	"time"
)

type lruNode[V any] struct {
	key        string
	value      V
	expiresAt  time.Time
	prev, next *lruNode[V]
}

// LRU is a fixed-capacity, least-recently-used cache whose entries also
// expire after a TTL. Expired entries are dropped lazily on access.
// Safe for concurrent use.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode[V]
	// head.next is the most recent entry, tail.prev the least recent.
	head, tail *lruNode[V]
	now        func() time.Time

	hits, misses int64
}

// NewLRU creates a cache. Non-positive arguments fall back to 10000
// entries and five minutes.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruNode[V]),
		head:     &lruNode[V]{},
		tail:     &lruNode[V]{},
		now:      time.Now,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns the live value under key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.now().After(n.expiresAt) {
		c.unlink(n)
		c.misses++
		return zero, false
	}
	c.unlinkList(n)
	c.pushFront(n)
	c.hits++
	return n.value, true
}

// Add stores value under key with a fresh TTL, evicting the least
// recently used entry when full.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if n, ok := c.items[key]; ok {
		n.value = value
		n.expiresAt = expires
		c.unlinkList(n)
		c.pushFront(n)
		return
	}

	n := &lruNode[V]{key: key, value: value, expiresAt: expires}
	c.items[key] = n
	c.pushFront(n)
	for len(c.items) > c.capacity {
		c.unlink(c.tail.prev)
	}
}

// Remove drops key. It reports whether the key was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.items[key]
	if ok {
		c.unlink(n)
	}
	return ok
}

// Len counts stored entries, expired ones included until they are touched.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counters.
func (c *LRU[V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *LRU[V]) pushFront(n *lruNode[V]) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRU[V]) unlinkList(n *lruNode[V]) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRU[V]) unlink(n *lruNode[V]) {
	c.unlinkList(n)
	delete(c.items, n.key)
}
