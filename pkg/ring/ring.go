// Package ring provides a fixed-capacity circular buffer that evicts the
// oldest element on overflow. Contents leave the buffer only as copies.
package ring

// Buffer is not safe for concurrent use; callers provide their own locking.
type Buffer[T any] struct {
	buf   []T
	start int
	size  int
}

// New creates a buffer holding at most capacity elements. Capacity below 1 is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v and reports whether the oldest element was evicted.
func (b *Buffer[T]) Push(v T) bool {
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = v
		b.size++
		return false
	}
	b.buf[b.start] = v
	b.start = (b.start + 1) % len(b.buf)
	return true
}

func (b *Buffer[T]) Len() int { return b.size }

func (b *Buffer[T]) Cap() int { return len(b.buf) }

// Last returns a copy of the newest n elements in insertion order.
// n <= 0 or n > Len returns everything.
func (b *Buffer[T]) Last(n int) []T {
	if n <= 0 || n > b.size {
		n = b.size
	}
	out := make([]T, n)
	first := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.buf[(b.start+first+i)%len(b.buf)]
	}
	return out
}

// All returns a copy of every element, oldest first.
func (b *Buffer[T]) All() []T { return b.Last(0) }

// Newest returns the most recent element.
func (b *Buffer[T]) Newest() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.buf[(b.start+b.size-1)%len(b.buf)], true
}

// Reset drops all elements and keeps the capacity.
func (b *Buffer[T]) Reset() {
	var zero T
	for i := range b.buf {
		b.buf[i] = zero
	}
	b.start, b.size = 0, 0
}
