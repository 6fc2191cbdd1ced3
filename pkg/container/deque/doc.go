/*
Package deque provides an unbounded, thread-safe double-ended queue.

Items can be pushed and popped at either end. Pops never block: an empty deque
reports ok == false.

	d := deque.New[string](0)
	d.PushBack("b")
	d.PushFront("a")

	v, ok := d.PopFront() // "a", true
	v, ok = d.PopBack()   // "b", true
	v, ok = d.PopBack()   // "", false

Storage is a power-of-two ring that doubles when full. A Deque has no close
protocol and no capacity limit; use channel.Channel when producers must be
slowed down or consumers must wait for work.
*/
package deque
