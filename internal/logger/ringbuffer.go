package logger

import "sync"

// RingBuffer is a fixed-capacity, thread-safe buffer that drops its oldest
// item when full.
type RingBuffer[T any] struct {
	items []T
	start int
	count int
	mu    sync.RWMutex
}

// NewRingBuffer creates a buffer holding at most capacity items.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest when full.
func (r *RingBuffer[T]) Push(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.items)
	r.items[(r.start+r.count)%size] = item
	if r.count < size {
		r.count++
		return
	}
	r.start = (r.start + 1) % size
}

// GetAll returns all items from oldest to newest.
func (r *RingBuffer[T]) GetAll() []T {
	return r.Last(-1)
}

// Last returns the newest n items, oldest first. n < 0 returns everything.
func (r *RingBuffer[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n < 0 || n > r.count {
		n = r.count
	}
	out := make([]T, n)
	skip := r.count - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.start+skip+i)%len(r.items)]
	}
	return out
}

// Len returns the number of buffered items.
func (r *RingBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
