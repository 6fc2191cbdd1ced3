package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gfcontext "github.com/vnykmshr/chanflow/pkg/common/context"
	gferrors "github.com/vnykmshr/chanflow/pkg/common/errors"
	"github.com/vnykmshr/chanflow/pkg/common/validation"
)

// ErrClosed is returned by Send on a closed channel, and by Receive once a
// closed channel has been drained. It matches gferrors.ErrClosed.
var ErrClosed = fmt.Errorf("channel is closed: %w", gferrors.ErrClosed)

// ErrFull is returned by TrySend when the buffer has no free slot.
var ErrFull = fmt.Errorf("channel buffer is full: %w", gferrors.ErrCapacityExceeded)

// ErrTimeout is returned by the timed variants when the wait elapses.
var ErrTimeout = fmt.Errorf("channel operation timed out: %w", gferrors.ErrTimeout)

// Sender is the producing half of a Channel.
type Sender[T any] interface {
	// Send blocks while the buffer is full and the channel is open.
	// It returns ErrClosed, without enqueuing value, once the channel is closed.
	Send(value T) error

	// SendContext is Send that also gives up with ctx.Err() when ctx ends.
	SendContext(ctx context.Context, value T) error

	// SendTimeout is Send that gives up with ErrTimeout after d.
	SendTimeout(value T, d time.Duration) error

	// TrySend never blocks. It returns ErrFull or ErrClosed on failure.
	TrySend(value T) error
}

// Receiver is the consuming half of a Channel.
type Receiver[T any] interface {
	// Receive blocks while the buffer is empty and the channel is open.
	// It returns ErrClosed if and only if the channel is closed and drained.
	Receive() (T, error)

	// ReceiveContext is Receive that also gives up with ctx.Err() when ctx ends.
	ReceiveContext(ctx context.Context) (T, error)

	// ReceiveTimeout is Receive that gives up with ErrTimeout after d.
	ReceiveTimeout(d time.Duration) (T, error)

	// TryReceive never blocks. It reports ok=false with a nil error when the
	// buffer is empty but the channel is still open.
	TryReceive() (value T, ok bool, err error)
}

// Channel is a bounded, closable FIFO shared by any number of producers and
// consumers.
type Channel[T any] interface {
	Sender[T]
	Receiver[T]

	// Close stops the channel from accepting new items. Buffered items remain
	// available to Receive. Close is idempotent.
	Close()

	// IsClosed returns true once Close has been called.
	IsClosed() bool

	// IsEmpty, IsFull and Len are point-in-time snapshots, useful for
	// metrics but not for deciding whether a later call will block.
	IsEmpty() bool
	IsFull() bool
	Len() int

	// Cap returns the fixed buffer capacity.
	Cap() int

	// Stats returns channel statistics.
	Stats() Stats
}

// Stats holds statistics about channel activity.
type Stats struct {
	// SendCount is the total number of items accepted.
	SendCount int64

	// ReceiveCount is the total number of items delivered.
	ReceiveCount int64

	// BlockedSends is the number of send calls that had to wait for space.
	BlockedSends int64

	// BlockedReceives is the number of receive calls that had to wait for an item.
	BlockedReceives int64

	// RejectedSends is the number of send calls that did not enqueue their value.
	RejectedSends int64

	// BufferUtilization is the current buffer utilization (0.0 to 1.0).
	BufferUtilization float64

	// LastSendTime is the timestamp of the last accepted item.
	LastSendTime time.Time

	// LastReceiveTime is the timestamp of the last delivered item.
	LastReceiveTime time.Time
}

// Config holds configuration for a bounded channel.
type Config struct {
	// Capacity is the fixed number of buffered slots. Must be positive.
	Capacity int

	// OnBlock is called, without the channel lock held, when a send has to
	// wait for space.
	OnBlock func()

	// OnStarve is called, without the channel lock held, when a receive has
	// to wait for an item.
	OnStarve func()

	// SendTimeout bounds SendContext when > 0 (0 = no timeout).
	SendTimeout time.Duration

	// ReceiveTimeout bounds ReceiveContext when > 0 (0 = no timeout).
	ReceiveTimeout time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:       100,
		SendTimeout:    0,
		ReceiveTimeout: 0,
	}
}

// Validate reports the first invalid field of c.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("channel", "capacity", c.Capacity); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("channel", "sendTimeout", c.SendTimeout); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("channel", "receiveTimeout", c.ReceiveTimeout)
}

// boundedChannel implements Channel as a ring buffer guarded by one mutex
// and two condition variables. Every field below mu is read and written only
// while holding mu.
type boundedChannel[T any] struct {
	config Config
	mu     sync.Mutex

	// notFull is signaled when a slot frees up, notEmpty when an item arrives.
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buffer []T
	head   int
	tail   int
	count  int
	closed bool

	stats Stats
}

// New creates a bounded channel with the given capacity.
// It panics if capacity is not positive; use NewSafe to get an error instead.
func New[T any](capacity int) Channel[T] {
	config := DefaultConfig()
	config.Capacity = capacity
	return NewWithConfig[T](config)
}

// NewWithConfig creates a bounded channel with the specified configuration.
// It panics on an invalid configuration.
func NewWithConfig[T any](config Config) Channel[T] {
	ch, err := NewWithConfigSafe[T](config)
	if err != nil {
		panic("invalid channel configuration: " + err.Error())
	}
	return ch
}

// NewSafe creates a bounded channel, returning a *errors.ValidationError
// instead of panicking when capacity is not positive.
func NewSafe[T any](capacity int) (Channel[T], error) {
	config := DefaultConfig()
	config.Capacity = capacity
	return NewWithConfigSafe[T](config)
}

// NewWithConfigSafe creates a bounded channel with validation that returns an
// error instead of panicking.
func NewWithConfigSafe[T any](config Config) (Channel[T], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ch := &boundedChannel[T]{
		config: config,
		buffer: make([]T, config.Capacity),
	}
	ch.notFull = sync.NewCond(&ch.mu)
	ch.notEmpty = sync.NewCond(&ch.mu)

	return ch, nil
}

// Send implements Sender.Send.
func (ch *boundedChannel[T]) Send(value T) error {
	return ch.send(context.Background(), value)
}

// SendContext implements Sender.SendContext.
func (ch *boundedChannel[T]) SendContext(ctx context.Context, value T) error {
	return ch.sendWithin(ctx, value, ch.config.SendTimeout)
}

// SendTimeout implements Sender.SendTimeout.
func (ch *boundedChannel[T]) SendTimeout(value T, d time.Duration) error {
	if d <= 0 {
		err := ch.TrySend(value)
		if errors.Is(err, ErrFull) {
			return ErrTimeout
		}
		return err
	}
	return ch.sendWithin(context.Background(), value, d)
}

// TrySend implements Sender.TrySend.
func (ch *boundedChannel[T]) TrySend(value T) error {
	ch.mu.Lock()
	if ch.closed {
		ch.stats.RejectedSends++
		ch.mu.Unlock()
		return ErrClosed
	}
	if ch.count == len(ch.buffer) {
		ch.stats.RejectedSends++
		ch.mu.Unlock()
		return ErrFull
	}
	ch.pushLocked(value)
	ch.mu.Unlock()

	ch.notEmpty.Signal()
	return nil
}

// Receive implements Receiver.Receive.
func (ch *boundedChannel[T]) Receive() (T, error) {
	return ch.receive(context.Background())
}

// ReceiveContext implements Receiver.ReceiveContext.
func (ch *boundedChannel[T]) ReceiveContext(ctx context.Context) (T, error) {
	return ch.receiveWithin(ctx, ch.config.ReceiveTimeout)
}

// ReceiveTimeout implements Receiver.ReceiveTimeout.
func (ch *boundedChannel[T]) ReceiveTimeout(d time.Duration) (T, error) {
	if d <= 0 {
		value, ok, err := ch.TryReceive()
		if !ok && err == nil {
			return value, ErrTimeout
		}
		return value, err
	}
	return ch.receiveWithin(context.Background(), d)
}

// TryReceive implements Receiver.TryReceive.
func (ch *boundedChannel[T]) TryReceive() (T, bool, error) {
	var zero T

	ch.mu.Lock()
	if ch.count == 0 {
		closed := ch.closed
		ch.mu.Unlock()
		if closed {
			return zero, false, ErrClosed
		}
		return zero, false, nil
	}
	value := ch.popLocked()
	ch.mu.Unlock()

	ch.notFull.Signal()
	return value, true, nil
}

// Close implements Channel.Close.
func (ch *boundedChannel[T]) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.mu.Unlock()

	// Every waiter's predicate just changed: blocked senders must fail and
	// blocked receivers must either drain or observe the close.
	ch.notFull.Broadcast()
	ch.notEmpty.Broadcast()
}

// IsClosed implements Channel.IsClosed.
func (ch *boundedChannel[T]) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// IsEmpty implements Channel.IsEmpty.
func (ch *boundedChannel[T]) IsEmpty() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count == 0
}

// IsFull implements Channel.IsFull.
func (ch *boundedChannel[T]) IsFull() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count == len(ch.buffer)
}

// Len implements Channel.Len.
func (ch *boundedChannel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count
}

// Cap implements Channel.Cap.
func (ch *boundedChannel[T]) Cap() int {
	return len(ch.buffer)
}

// Stats implements Channel.Stats.
func (ch *boundedChannel[T]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	stats := ch.stats
	stats.BufferUtilization = float64(ch.count) / float64(len(ch.buffer))
	return stats
}

// sendWithin applies an optional timeout on top of ctx and reports ErrTimeout
// when that timeout, rather than ctx itself, ended the wait.
func (ch *boundedChannel[T]) sendWithin(ctx context.Context, value T, timeout time.Duration) error {
	waitCtx, cancel := gfcontext.WithTimeoutOrCancel(ctx, timeout)
	defer cancel()

	err := ch.send(waitCtx, value)
	if timeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// receiveWithin is the receive counterpart of sendWithin.
func (ch *boundedChannel[T]) receiveWithin(ctx context.Context, timeout time.Duration) (T, error) {
	waitCtx, cancel := gfcontext.WithTimeoutOrCancel(ctx, timeout)
	defer cancel()

	value, err := ch.receive(waitCtx)
	if timeout > 0 && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return value, ErrTimeout
	}
	return value, err
}

// send enqueues value, waiting for space until the channel closes or ctx ends.
func (ch *boundedChannel[T]) send(ctx context.Context, value T) error {
	ch.mu.Lock()

	if !ch.canSendLocked() {
		ch.stats.BlockedSends++
		if ch.config.OnBlock != nil {
			ch.mu.Unlock()
			ch.config.OnBlock()
			ch.mu.Lock()
		}

		if err := ch.waitLocked(ctx, ch.notFull, ch.canSendLocked); err != nil {
			ch.stats.RejectedSends++
			ch.mu.Unlock()
			return err
		}
	}

	if ch.closed {
		ch.stats.RejectedSends++
		ch.mu.Unlock()
		return ErrClosed
	}

	ch.pushLocked(value)
	ch.mu.Unlock()

	ch.notEmpty.Signal()
	return nil
}

// receive dequeues the oldest item, waiting for one until the channel is
// closed and drained or ctx ends.
func (ch *boundedChannel[T]) receive(ctx context.Context) (T, error) {
	var zero T

	ch.mu.Lock()

	if !ch.canReceiveLocked() {
		ch.stats.BlockedReceives++
		if ch.config.OnStarve != nil {
			ch.mu.Unlock()
			ch.config.OnStarve()
			ch.mu.Lock()
		}

		if err := ch.waitLocked(ctx, ch.notEmpty, ch.canReceiveLocked); err != nil {
			ch.mu.Unlock()
			return zero, err
		}
	}

	if ch.count == 0 {
		// Only reachable when closed: the buffer is drained.
		ch.mu.Unlock()
		return zero, ErrClosed
	}

	value := ch.popLocked()
	ch.mu.Unlock()

	ch.notFull.Signal()
	return value, nil
}

// waitLocked parks on cond until ready holds or ctx ends (must hold lock).
// Cancellation wakes the waiter by broadcasting on cond under the lock, so a
// cancel can never slip in between the ctx check and cond.Wait. ready is
// checked before ctx: a waiter that returns an error never had a usable
// wakeup, so no Signal is lost to a canceled call.
func (ch *boundedChannel[T]) waitLocked(ctx context.Context, cond *sync.Cond, ready func() bool) error {
	var stop func() bool
	defer func() {
		if stop != nil {
			stop()
		}
	}()

	for !ready() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if stop == nil {
			stop = gfcontext.AfterDone(ctx, func() {
				ch.mu.Lock()
				cond.Broadcast()
				ch.mu.Unlock()
			})
		}
		cond.Wait()
	}
	return nil
}

// canSendLocked reports whether a send can complete now (must hold lock).
func (ch *boundedChannel[T]) canSendLocked() bool {
	return ch.count < len(ch.buffer) || ch.closed
}

// canReceiveLocked reports whether a receive can complete now (must hold lock).
func (ch *boundedChannel[T]) canReceiveLocked() bool {
	return ch.count > 0 || ch.closed
}

// pushLocked adds a value to the buffer (must hold lock).
func (ch *boundedChannel[T]) pushLocked(value T) {
	ch.buffer[ch.tail] = value
	ch.tail = (ch.tail + 1) % len(ch.buffer)
	ch.count++
	ch.stats.SendCount++
	ch.stats.LastSendTime = time.Now()
}

// popLocked removes the oldest value from the buffer (must hold lock).
func (ch *boundedChannel[T]) popLocked() T {
	value := ch.buffer[ch.head]
	var zero T
	ch.buffer[ch.head] = zero // Clear reference
	ch.head = (ch.head + 1) % len(ch.buffer)
	ch.count--
	ch.stats.ReceiveCount++
	ch.stats.LastReceiveTime = time.Now()
	return value
}
