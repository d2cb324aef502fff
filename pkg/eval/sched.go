package eval

import "sync"

// scheduler serializes execution with a single baton passed in FIFO order.
// Whoever holds the baton runs; everyone else waits in the queue. Together
// blocks pre-enqueue one ticket per block, so synchronous blocks run to
// completion in registration order; a block awaiting a Pending value releases
// the baton and re-enqueues at the tail when the await finishes.
type scheduler struct {
	mu      sync.Mutex
	running bool
	queue   []chan struct{}
}

// acquire takes the baton, waiting at the tail of the queue if it is held.
func (sc *scheduler) acquire() {
	sc.mu.Lock()
	if !sc.running {
		sc.running = true
		sc.mu.Unlock()
		return
	}
	ch := make(chan struct{})
	sc.queue = append(sc.queue, ch)
	sc.mu.Unlock()
	<-ch
}

// release passes the baton to the head of the queue, or parks it.
func (sc *scheduler) release() {
	sc.mu.Lock()
	if len(sc.queue) > 0 {
		ch := sc.queue[0]
		sc.queue = sc.queue[1:]
		sc.mu.Unlock()
		close(ch)
		return
	}
	sc.running = false
	sc.mu.Unlock()
}

// ticket reserves a queue slot without blocking. The caller must hold the
// baton; the slot is granted in queue order once the baton reaches it.
func (sc *scheduler) ticket() chan struct{} {
	ch := make(chan struct{})
	sc.mu.Lock()
	sc.queue = append(sc.queue, ch)
	sc.mu.Unlock()
	return ch
}
