package queue

// Ring is a fixed-capacity buffer that evicts the oldest entry on overflow.
// It is not safe for concurrent use; the owner serializes access.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates a ring holding at most capacity items. Capacity must be positive.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("queue: ring capacity must be positive")
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Add appends v, dropping the oldest item when full.
func (r *Ring[T]) Add(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the maximum number of items.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Last returns the newest item, or false when empty.
func (r *Ring[T]) Last() (T, bool) {
	if r.size == 0 {
		var zero T
		return zero, false
	}
	return r.buf[(r.start+r.size-1)%len(r.buf)], true
}

// Values returns a copy of the items, oldest first.
func (r *Ring[T]) Values() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Clone returns an independent copy of the ring.
func (r *Ring[T]) Clone() *Ring[T] {
	c := &Ring[T]{buf: make([]T, len(r.buf)), start: r.start, size: r.size}
	copy(c.buf, r.buf)
	return c
}
