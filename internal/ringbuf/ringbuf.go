package ringbuf

import "sync"

// Buffer is a bounded FIFO that evicts its oldest element once full.
// It is safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
	start int
	size  int
}

func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v and reports whether an older element was evicted.
func (b *Buffer[T]) Push(v T) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	end := (b.start + b.size) % len(b.items)
	b.items[end] = v
	if b.size < len(b.items) {
		b.size++
		return false
	}
	b.start = (b.start + 1) % len(b.items)
	return true
}

// Snapshot returns the buffered elements oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}

func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer[T]) Cap() int { return len(b.items) }
