package ringbuf

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrFull indicates there is no room for the pushed elements.
	ErrFull = errors.New("ring buffer full")
	// ErrEmpty indicates there is nothing to pop.
	ErrEmpty = errors.New("ring buffer empty")
)

// MaxCapacity is the largest capacity a Ring accepts.
const MaxCapacity = 1 << 30

// Ring is a fixed-capacity single-producer/single-consumer queue.
//
// The producer owns tail and the consumer owns head. Both run modulo
// twice the capacity so a full ring (distance == capacity) and an empty
// ring (distance == 0) are told apart without a flag. Each side reads the
// other side's index with an atomic load, and elements are written before
// tail is published, so the consumer never observes a partial push.
type Ring[T any] struct {
	data  []T
	n     uint32
	limit uint32 // 2*n

	head atomic.Uint32
	tail atomic.Uint32
}

// New creates a Ring holding up to capacity elements.
// All storage is allocated here.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 || capacity > MaxCapacity {
		panic("ringbuf: invalid capacity")
	}
	return &Ring[T]{
		data:  make([]T, capacity),
		n:     uint32(capacity),
		limit: uint32(capacity) * 2,
	}
}

func (r *Ring[T]) advance(i, k uint32) uint32 {
	if i += k; i >= r.limit {
		i -= r.limit
	}
	return i
}

func (r *Ring[T]) distance(head, tail uint32) uint32 {
	if tail >= head {
		return tail - head
	}
	return tail + r.limit - head
}

func (r *Ring[T]) index(i uint32) uint32 {
	if i >= r.n {
		return i - r.n
	}
	return i
}

// Capacity returns the fixed capacity.
func (r *Ring[T]) Capacity() int {
	return int(r.n)
}

// UsedSpace returns the number of unread elements.
func (r *Ring[T]) UsedSpace() int {
	return int(r.distance(r.head.Load(), r.tail.Load()))
}

// FreeSpace returns Capacity() - UsedSpace().
func (r *Ring[T]) FreeSpace() int {
	return int(r.n) - r.UsedSpace()
}

// IsAvailable reports whether there is at least one unread element.
func (r *Ring[T]) IsAvailable() bool {
	return r.head.Load() != r.tail.Load()
}

// Push appends v. It fails with ErrFull rather than overwriting unread data.
// Producer side.
func (r *Ring[T]) Push(v T) error {
	tail := r.tail.Load()
	if r.distance(r.head.Load(), tail) == r.n {
		return ErrFull
	}
	r.data[r.index(tail)] = v
	r.tail.Store(r.advance(tail, 1))
	return nil
}

// PushAll appends all of vs or nothing. The tail is published once, after
// the last element is stored. Producer side.
func (r *Ring[T]) PushAll(vs []T) error {
	tail := r.tail.Load()
	if uint64(len(vs)) > uint64(r.n-r.distance(r.head.Load(), tail)) {
		return ErrFull
	}
	pos := r.index(tail)
	k := copy(r.data[pos:], vs)
	copy(r.data, vs[k:])
	r.tail.Store(r.advance(tail, uint32(len(vs))))
	return nil
}

// Reserve returns the slot the next Commit publishes, or nil when the ring
// is full. The slot may hold stale data. Producer side.
func (r *Ring[T]) Reserve() *T {
	tail := r.tail.Load()
	if r.distance(r.head.Load(), tail) == r.n {
		return nil
	}
	return &r.data[r.index(tail)]
}

// Commit publishes the slot returned by the last successful Reserve.
func (r *Ring[T]) Commit() {
	r.tail.Store(r.advance(r.tail.Load(), 1))
}

// Pop removes and returns the oldest element. Consumer side.
func (r *Ring[T]) Pop() (v T, err error) {
	head := r.head.Load()
	if head == r.tail.Load() {
		return v, ErrEmpty
	}
	v = r.data[r.index(head)]
	r.head.Store(r.advance(head, 1))
	return v, nil
}

// Front returns the longest contiguous run of unread elements without
// consuming them. It is empty when nothing is available. Consumer side.
func (r *Ring[T]) Front() []T {
	head := r.head.Load()
	used := r.distance(head, r.tail.Load())
	if used == 0 {
		return nil
	}
	pos := r.index(head)
	end := pos + used
	if end > r.n {
		end = r.n
	}
	return r.data[pos:end]
}

// Advance consumes k elements previously seen via Front.
func (r *Ring[T]) Advance(k int) {
	if k <= 0 {
		return
	}
	head := r.head.Load()
	if used := r.distance(head, r.tail.Load()); uint32(k) > used {
		k = int(used)
	}
	r.head.Store(r.advance(head, uint32(k)))
}

// Reset drops all elements. Neither side may be active during Reset.
func (r *Ring[T]) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
}
