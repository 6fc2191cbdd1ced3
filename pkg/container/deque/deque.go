package deque

import "sync"

const minCapacity = 16

// Deque is an unbounded double-ended queue safe for concurrent use.
// The zero value is an empty deque ready to use.
type Deque[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int
	count int
}

// New creates an empty deque with room for at least capacity items before
// it has to grow.
func New[T any](capacity int) *Deque[T] {
	size := minCapacity
	for size < capacity {
		size <<= 1
	}
	return &Deque[T]{buf: make([]T, size)}
}

// PushBack appends value at the back.
func (d *Deque[T]) PushBack(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.growIfFull()
	d.buf[d.index(d.count)] = value
	d.count++
}

// PushFront inserts value at the front.
func (d *Deque[T]) PushFront(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.growIfFull()
	d.head = d.index(len(d.buf) - 1)
	d.buf[d.head] = value
	d.count++
}

// PopFront removes and returns the front item. ok is false if the deque is empty.
func (d *Deque[T]) PopFront() (value T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return value, false
	}
	var zero T
	value = d.buf[d.head]
	d.buf[d.head] = zero
	d.head = d.index(1)
	d.count--
	return value, true
}

// PopBack removes and returns the back item. ok is false if the deque is empty.
func (d *Deque[T]) PopBack() (value T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return value, false
	}
	var zero T
	i := d.index(d.count - 1)
	value = d.buf[i]
	d.buf[i] = zero
	d.count--
	return value, true
}

// Front returns the front item without removing it.
func (d *Deque[T]) Front() (value T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return value, false
	}
	return d.buf[d.head], true
}

// Back returns the back item without removing it.
func (d *Deque[T]) Back() (value T, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.count == 0 {
		return value, false
	}
	return d.buf[d.index(d.count-1)], true
}

// Len returns the number of items.
func (d *Deque[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// IsEmpty reports whether the deque holds no items.
func (d *Deque[T]) IsEmpty() bool {
	return d.Len() == 0
}

// Clear removes every item and releases the backing storage.
func (d *Deque[T]) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = nil
	d.head = 0
	d.count = 0
}

// index maps a logical position, relative to head, to a slot in buf
// (must hold lock). len(buf) is always a power of two.
func (d *Deque[T]) index(i int) int {
	return (d.head + i) & (len(d.buf) - 1)
}

// growIfFull doubles the storage when every slot is used (must hold lock).
func (d *Deque[T]) growIfFull() {
	if d.count < len(d.buf) {
		return
	}
	size := len(d.buf) << 1
	if size == 0 {
		size = minCapacity
	}

	buf := make([]T, size)
	if d.count > 0 {
		n := copy(buf, d.buf[d.head:])
		copy(buf[n:], d.buf[:d.head])
	}
	d.buf = buf
	d.head = 0
}
