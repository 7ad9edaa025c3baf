package dispatch

import "sync"

// serialQueue runs submitted funcs one at a time in submission order. The
// draining goroutine is started on demand and exits once the queue is empty.
type serialQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func (q *serialQueue) submit(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.pending = nil
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}

