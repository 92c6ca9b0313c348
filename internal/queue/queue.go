// Package queue implements the bounded producer/consumer task queue that
// feeds the worker pool: a fixed-capacity ring buffer of accepted
// connections with blocking enqueue/dequeue and a one-shot shutdown
// broadcast.
//
// This is a direct translation of a ring buffer + mutex + two condition
// variables design (spec 3-4.C) rather than a channel-based queue, because
// the tested properties (FIFO ordering, enqueue-blocks-when-full,
// dequeue-returns-none-on-drained-shutdown) are specified in terms of that
// exact structure.
package queue

import (
	"net"
	"sync"
)

// Queue is a bounded FIFO of accepted connections.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	ring  []net.Conn
	head  int
	tail  int
	count int

	closed bool
}

// New creates a queue with the given ring capacity. capacity must be > 0.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{ring: make([]net.Conn, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue blocks while the queue is full and not shutting down. If shutdown
// is signalled while waiting, the connection is closed and discarded
// instead of being queued (spec 5, graceful shutdown contract (b)).
func (q *Queue) Enqueue(conn net.Conn) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.ring) && !q.closed {
		q.notFull.Wait()
	}

	if q.closed {
		conn.Close()
		return
	}

	q.ring[q.tail] = conn
	q.tail = (q.tail + 1) % len(q.ring)
	q.count++
	q.notEmpty.Signal()
}

// Dequeue blocks while the queue is empty and not shutting down. Once
// shutdown has been signalled and the queue has drained, it returns
// (nil, false) so workers can exit (spec 5, contract (c)).
func (q *Queue) Dequeue() (net.Conn, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.count == 0 {
		// closed and drained
		return nil, false
	}

	conn := q.ring[q.head]
	q.ring[q.head] = nil
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.notFull.Signal()
	return conn, true
}

// Close signals shutdown and wakes every waiter. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len reports the current queue depth, for metrics and tests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
