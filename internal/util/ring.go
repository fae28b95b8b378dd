package util

// Ring is a fixed-capacity FIFO that overwrites its oldest element once
// full. It is not safe for concurrent use; owners guard it with their own
// lock.
type Ring[T any] struct {
	items []T
	start int
	size  int
	total int
}

// NewRing returns a ring holding at most capacity items. A capacity below
// one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

func (r *Ring[T]) Push(v T) {
	r.total++
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = v
		r.size++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.items) }

// Dropped reports how many items were overwritten since creation.
func (r *Ring[T]) Dropped() int { return r.total - r.size }

// Slice copies the retained items, oldest first.
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Last returns up to n of the newest items, oldest first.
func (r *Ring[T]) Last(n int) []T {
	all := r.Slice()
	if n >= len(all) || n < 0 {
		return all
	}
	return all[len(all)-n:]
}
