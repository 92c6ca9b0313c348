// Package worker runs the fixed pool of long-lived goroutines that drain
// the task queue and dispatch each connection to the handler package
// (spec component D).
package worker

import (
	"context"
	"net"
	"sync"

	"github.com/tbsphathuynh/caching-forward-proxy/internal/handler"
	"github.com/tbsphathuynh/caching-forward-proxy/internal/queue"
)

// Pool is N workers dequeuing from a shared queue.Queue. Workers never
// share per-connection buffers; every allocation handler.Dispatch makes is
// local to that call.
type Pool struct {
	wg sync.WaitGroup
}

// Start spawns n workers, each looping dequeue -> Dispatch -> close until
// q.Dequeue reports shutdown-and-drained. active, if non-nil, is kept in
// step with how many workers are currently handling a connection rather
// than waiting on the queue (spec 4.D, wired to internal/metrics).
func Start(n int, q *queue.Queue, deps *handler.Deps, active func(delta int)) *Pool {
	p := &Pool{}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			run(q, deps, active)
		}()
	}
	return p
}

// Join blocks until every worker has exited. Callers drive this after
// signalling queue shutdown (spec 4.G teardown ordering).
func (p *Pool) Join() {
	p.wg.Wait()
}

func run(q *queue.Queue, deps *handler.Deps, active func(delta int)) {
	for {
		conn, ok := q.Dequeue()
		if !ok {
			return
		}

		if active != nil {
			active(1)
		}
		handleOne(conn, deps)
		if active != nil {
			active(-1)
		}
	}
}

// handleOne dispatches one connection and always closes the client socket
// afterward, regardless of how Dispatch returned (spec 4.D).
func handleOne(conn net.Conn, deps *handler.Deps) {
	defer conn.Close()
	handler.Dispatch(context.Background(), conn, deps)
}
