package context

import (
	"context"
	"errors"
	"time"
)

// WithTimeoutOrCancel creates a context that is canceled either when the parent
// is canceled or when the timeout duration elapses, whichever comes first.
// A non-positive timeout returns the parent unchanged with a no-op cancel.
func WithTimeoutOrCancel(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}

// AfterDone arranges for fn to run in its own goroutine once ctx is done.
// Contexts that can never be done (Done() == nil) register nothing.
// The returned stop func behaves like the one from context.AfterFunc.
func AfterDone(ctx context.Context, fn func()) (stop func() bool) {
	if ctx.Done() == nil {
		return func() bool { return false }
	}
	return context.AfterFunc(ctx, fn)
}

// IsCanceled returns true if the context has been canceled
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsTimedOut returns true if the context was canceled due to a timeout
func IsTimedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}
