package cache

import (
	"fmt"
	"testing"
)

// TestPutGetRoundTrip verifies the caching half of the miss-then-hit
// scenario (spec 8, end-to-end scenario 1): after Put, Get returns the same
// bytes.
func TestPutGetRoundTrip(t *testing.T) {
	c := New(1000, 100, nil, nil)
	c.Put("origin.test/index", []byte("BODY"))

	h, ok := c.Get("origin.test/index")
	if !ok {
		t.Fatal("expected cache hit")
	}
	defer h.Release()

	if string(h.Bytes()) != "BODY" {
		t.Errorf("got %q, want %q", h.Bytes(), "BODY")
	}
}

// TestGetMiss verifies an absent key reports a miss.
func TestGetMiss(t *testing.T) {
	c := New(1000, 100, nil, nil)
	if _, ok := c.Get("nope"); ok {
		t.Error("expected cache miss")
	}
}

// TestPutOverCeilingRejected verifies a payload larger than the per-element
// ceiling is a no-op (spec 8 boundary case: size == ceiling+1 rejected).
func TestPutOverCeilingRejected(t *testing.T) {
	c := New(1000, 100, nil, nil)
	c.Put("k", make([]byte, 101))
	if _, ok := c.Get("k"); ok {
		t.Error("expected oversized payload to be rejected")
	}
}

// TestPutAtCeilingAccepted verifies size == ceiling is accepted.
func TestPutAtCeilingAccepted(t *testing.T) {
	c := New(1000, 100, nil, nil)
	c.Put("k", make([]byte, 100))
	h, ok := c.Get("k")
	if !ok {
		t.Fatal("expected payload at ceiling to be accepted")
	}
	h.Release()
}

// TestEviction verifies scenario 4: capacity 100, per-element 100; putting
// two 60-byte entries evicts the first.
func TestEviction(t *testing.T) {
	c := New(100, 100, nil, nil)
	c.Put("A", make([]byte, 60))
	c.Put("B", make([]byte, 60))

	if _, ok := c.Get("A"); ok {
		t.Error("expected A to be evicted")
	}
	h, ok := c.Get("B")
	if !ok {
		t.Fatal("expected B to remain cached")
	}
	h.Release()

	if got := c.CurrentBytes(); got != 60 {
		t.Errorf("current bytes = %d, want 60", got)
	}
}

// TestPromotion verifies scenario 5: Get(A) promotes A so that later
// evictions target B first.
func TestPromotion(t *testing.T) {
	c := New(100, 100, nil, nil)
	c.Put("A", make([]byte, 10))
	c.Put("B", make([]byte, 10))
	c.Put("C", make([]byte, 10))

	h, ok := c.Get("A")
	if !ok {
		t.Fatal("expected A present")
	}
	h.Release()

	// Fill with 90 more bytes of distinct keys: the first 70 bring the cache
	// to exactly its 100-byte capacity, the last 20 force two evictions.
	for i := 0; i < 9; i++ {
		c.Put(fmt.Sprintf("filler-%d", i), make([]byte, 10))
	}

	if _, ok := c.Get("B"); ok {
		t.Error("expected B to be evicted before A")
	}
	if h, ok := c.Get("A"); !ok {
		t.Error("expected A to survive due to promotion")
	} else {
		h.Release()
	}
}

// TestCurrentBytesNeverExceedsCapacity is a property check (spec 8,
// invariant 1) across a mixed sequence of puts.
func TestCurrentBytesNeverExceedsCapacity(t *testing.T) {
	c := New(500, 200, nil, nil)
	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("k%d", i%7), make([]byte, 37+i%50))
		if got := c.CurrentBytes(); got > 500 {
			t.Fatalf("current bytes %d exceeds capacity 500 after put %d", got, i)
		}
	}
}

// TestReadHandleSurvivesEviction verifies spec 5's option (ii): a handle
// acquired before eviction still returns valid bytes after the entry is
// evicted from the cache.
func TestReadHandleSurvivesEviction(t *testing.T) {
	c := New(60, 60, nil, nil)
	c.Put("A", []byte("hello-a"))

	h, ok := c.Get("A")
	if !ok {
		t.Fatal("expected A present")
	}

	// Force A's eviction while the handle is still outstanding.
	c.Put("B", make([]byte, 60))

	if string(h.Bytes()) != "hello-a" {
		t.Errorf("handle bytes corrupted after eviction: %q", h.Bytes())
	}
	h.Release()
}

// TestDuplicateKeyPutPrependsNewest verifies that Put does not deduplicate:
// Get after two Puts under the same key returns the most recent payload
// (see DESIGN.md open-question decision 2).
func TestDuplicateKeyPutPrependsNewest(t *testing.T) {
	c := New(1000, 100, nil, nil)
	c.Put("k", []byte("first"))
	c.Put("k", []byte("second"))

	h, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	defer h.Release()
	if string(h.Bytes()) != "second" {
		t.Errorf("got %q, want %q", h.Bytes(), "second")
	}
}

// TestClose verifies shutdown frees all entries (DESIGN.md decision 1).
func TestClose(t *testing.T) {
	c := New(1000, 100, nil, nil)
	c.Put("a", []byte("x"))
	c.Put("b", []byte("y"))
	c.Close()

	if c.Len() != 0 {
		t.Errorf("expected empty cache after Close, got %d entries", c.Len())
	}
	if c.CurrentBytes() != 0 {
		t.Errorf("expected 0 current bytes after Close, got %d", c.CurrentBytes())
	}
}
