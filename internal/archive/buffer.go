package archive

import "sync"

// Buffer is a thread-safe FIFO ring that doubles its capacity when it
// reaches 70% full. It never blocks or drops on Push.
type Buffer[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int // read position
	tail   int // write position
	count  int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Resizes  int
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends item. It returns false once the buffer is closed.
func (b *Buffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := max(len(b.buf)*70/100, 1)
	if b.count+1 >= threshold {
		b.grow()
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % len(b.buf)
	b.count++
	b.pushed++
	return true
}

// Drain removes up to n items in FIFO order, or every item when n <= 0.
func (b *Buffer[T]) Drain(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n <= 0 || n > b.count {
		n = b.count
	}

	out := make([]T, n)
	var zero T
	for i := range out {
		out[i] = b.buf[b.head]
		b.buf[b.head] = zero
		b.head = (b.head + 1) % len(b.buf)
	}
	b.count -= n
	b.popped += int64(n)
	return out
}

// Close stops accepting items. Items already queued can still be drained.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// Len returns the number of queued items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Len:      b.count,
		Capacity: len(b.buf),
		Pushed:   b.pushed,
		Popped:   b.popped,
		Resizes:  b.resizes,
	}
}

// grow doubles the capacity. Must be called with mu held.
func (b *Buffer[T]) grow() {
	next := make([]T, len(b.buf)*2)

	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.buf[b.head:b.tail])
		} else {
			n := copy(next, b.buf[b.head:])
			copy(next[n:], b.buf[:b.tail])
		}
	}

	b.buf = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
