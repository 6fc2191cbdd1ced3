package channel

import (
	"context"
	"errors"
	"iter"
)

// Drain receives until r is closed and empty and returns the items in the
// order they were delivered. It blocks while r is open, so call it after the
// producers have finished and Close has been called, or from a dedicated
// consumer goroutine.
func Drain[T any](r Receiver[T]) []T {
	var items []T
	for {
		value, err := r.Receive()
		if err != nil {
			return items
		}
		items = append(items, value)
	}
}

// Range calls fn for every item received from r until r is closed and
// drained, in which case it returns nil. It stops early with ctx.Err() when
// ctx ends, or with the first error fn returns.
func Range[T any](ctx context.Context, r Receiver[T], fn func(T) error) error {
	for {
		value, err := r.ReceiveContext(ctx)
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(value); err != nil {
			return err
		}
	}
}

// All returns an iterator over the items received from r. Iteration ends
// when r is closed and drained, or when the loop body breaks; an item is
// consumed from r only when it is handed to the loop body.
//
//	for job := range channel.All(jobs) {
//		process(job)
//	}
func All[T any](r Receiver[T]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			value, err := r.Receive()
			if err != nil {
				return
			}
			if !yield(value) {
				return
			}
		}
	}
}
