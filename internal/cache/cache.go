// Package cache implements the proxy's byte-budget bounded LRU response
// cache: an O(1) hash index combined with a doubly-linked recency list
// under a single mutex.
//
// The hash index is a fixed 1024-bucket array with djb2 hashing and
// chaining, not a Go map — spec.md names the exact hash function and
// bucket count as part of the design, so it's implemented literally rather
// than delegated to the runtime's map.
package cache

import (
	"sync"
	"sync/atomic"
)

const bucketCount = 1024

// node is one entry, living simultaneously in a hash bucket chain and at a
// position in the recency list. prev/next form the recency list; chainNext
// forms the singly-linked hash bucket chain.
type node struct {
	key     string
	payload []byte
	size    int

	prev, next *node
	chainNext  *node

	refs int32 // outstanding ReadHandles plus one while resident in the cache
}

// Cache is a thread-safe, byte-budget bounded LRU.
// Fields (spec 3): capacity, currentBytes (<= capacity after every mutation),
// bucket array, recency list head/tail sentinels, one mutex.
type Cache struct {
	mu sync.Mutex

	buckets [bucketCount]*node

	head, tail *node // sentinels: head.next is MRU, tail.prev is LRU

	capacity       int64
	elementCeiling int64
	currentBytes   int64

	onEvict func(key string, size int, currentBytes int64)
	onWarn  func(format string, args ...any)
}

// New creates an empty cache with the given byte capacity and per-element
// ceiling. onEvict and onWarn are optional observability hooks (may be nil);
// the proxy wires them to metrics and the log sink respectively. onEvict
// receives the cache's currentBytes as already updated for the eviction, so
// callers never need to call back into the cache (and its mutex) from
// within the hook.
func New(capacityBytes, elementCeilingBytes int64, onEvict func(key string, size int, currentBytes int64), onWarn func(format string, args ...any)) *Cache {
	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &Cache{
		head:           head,
		tail:           tail,
		capacity:       capacityBytes,
		elementCeiling: elementCeilingBytes,
		onEvict:        onEvict,
		onWarn:         onWarn,
	}
}

// hashKey computes the djb2 hash of key, reduced modulo the bucket count.
// h = 5381; for each byte c: h = h*33 + c.
func hashKey(key string) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(key); i++ {
		h = h*33 + uint64(key[i])
	}
	return h % bucketCount
}

// ReadHandle exposes a cached payload for the duration of a read. Payload
// remains addressable even if the underlying entry is evicted while the
// handle is outstanding: the handle holds its own reference count share
// (spec 5, option ii), and the node's own byte slice is only ever replaced,
// never mutated in place, so concurrent evictions cannot corrupt bytes
// already handed out.
type ReadHandle struct {
	n *node
}

// Bytes returns the cached payload. Valid until Release is called.
func (h *ReadHandle) Bytes() []byte {
	return h.n.payload
}

// Release gives up this handle's share of the entry. Must be called exactly
// once per handle returned by Get.
func (h *ReadHandle) Release() {
	atomic.AddInt32(&h.n.refs, -1)
}

// Get looks up key, promoting it to the head of the recency list on a hit.
// Returns (handle, true) on hit; the caller must Release the handle.
func (c *Cache) Get(key string) (*ReadHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := hashKey(key)
	for n := c.buckets[b]; n != nil; n = n.chainNext {
		if n.key == key {
			c.moveToFront(n)
			atomic.AddInt32(&n.refs, 1)
			return &ReadHandle{n: n}, true
		}
	}
	return nil, false
}

// Put stores bytes under key, evicting least-recently-used entries until
// the new entry fits within capacity. A payload larger than the per-element
// ceiling (or larger than the whole cache) is rejected as a no-op (spec
// 4.B: "the call is a no-op (log a warning)").
//
// Duplicate keys are not deduplicated: a new node is always prepended to
// both the recency list and its bucket chain, matching spec.md 9's
// description of the original behaviour. Get returns the first chain match,
// which is always the most recently Put node for that key.
func (c *Cache) Put(key string, payload []byte) {
	size := int64(len(payload))
	if size > c.elementCeiling || size > c.capacity {
		if c.onWarn != nil {
			c.onWarn("cache: rejecting %d-byte payload for %q, exceeds ceiling/capacity", size, key)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.currentBytes+size > c.capacity && c.tail.prev != c.head {
		c.evictTail()
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	n := &node{
		key:     key,
		payload: stored,
		size:    len(stored),
		refs:    1, // one implicit reference for residing in the cache
	}

	b := hashKey(key)
	n.chainNext = c.buckets[b]
	c.buckets[b] = n

	c.addToFront(n)
	c.currentBytes += int64(n.size)
}

// moveToFront detaches n from its current recency-list position and
// reattaches it immediately after the head sentinel. Must be called with
// the mutex held.
func (c *Cache) moveToFront(n *node) {
	c.removeFromList(n)
	c.addToFront(n)
}

// addToFront inserts n immediately after the head sentinel. Must be called
// with the mutex held.
func (c *Cache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

// removeFromList unlinks n from the recency list without touching its
// bucket chain. Must be called with the mutex held.
func (c *Cache) removeFromList(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

// evictTail removes the current least-recently-used entry from both the
// recency list and its bucket chain, and releases the cache's own
// reference to it. Must be called with the mutex held and with the list
// non-empty. onEvict is invoked while the mutex is still held, so it must
// not call back into the cache itself (Get/Put/CurrentBytes etc. would
// deadlock on the same, non-reentrant mutex) — it's handed currentBytes
// directly for that reason.
func (c *Cache) evictTail() {
	lru := c.tail.prev
	c.removeFromList(lru)
	c.removeFromBucket(lru)
	c.currentBytes -= int64(lru.size)

	if c.onEvict != nil {
		c.onEvict(lru.key, lru.size, c.currentBytes)
	}

	if atomic.AddInt32(&lru.refs, -1) == 0 {
		lru.payload = nil
	}
}

// removeFromBucket scans lru's bucket chain and unlinks it. Hash chains are
// singly-linked, so removal costs O(chain length), same as the lookup it
// mirrors. Must be called with the mutex held.
func (c *Cache) removeFromBucket(lru *node) {
	b := hashKey(lru.key)
	if c.buckets[b] == lru {
		c.buckets[b] = lru.chainNext
		return
	}
	for n := c.buckets[b]; n != nil; n = n.chainNext {
		if n.chainNext == lru {
			n.chainNext = lru.chainNext
			return
		}
	}
}

// Close frees every entry still resident in the cache. Spec.md 9 leaves
// shutdown cleanup to the implementer; this proxy frees eagerly rather than
// leaking, matching the stated preference.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.head.next; n != c.tail; {
		next := n.next
		if atomic.AddInt32(&n.refs, -1) == 0 {
			n.payload = nil
		}
		n.prev, n.next, n.chainNext = nil, nil, nil
		n = next
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	for i := range c.buckets {
		c.buckets[i] = nil
	}
	c.currentBytes = 0
}

// Len reports the number of entries currently resident, for tests and
// metrics. O(n).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for cur := c.head.next; cur != c.tail; cur = cur.next {
		n++
	}
	return n
}

// CurrentBytes reports the current total payload size under the mutex.
func (c *Cache) CurrentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBytes
}
