package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertErrorIs fails the test unless errors.Is(err, target).
func AssertErrorIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("got error %v, want %v", err, target)
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t testing.TB, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertNotEqual fails the test if got == want
func AssertNotEqual[T comparable](t testing.TB, got, notWant T) {
	t.Helper()
	if got == notWant {
		t.Fatalf("got %v, want anything else", got)
	}
}

// Eventually polls condition every tick until it returns true or waitFor elapses.
func Eventually(t testing.TB, condition func() bool, waitFor, tick time.Duration) {
	t.Helper()

	deadline := time.Now().Add(waitFor)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", waitFor)
		}
		time.Sleep(tick)
	}
}

// AssertEventually is Eventually with the default test timeout and a 5ms tick.
func AssertEventually(t testing.TB, condition func() bool) {
	t.Helper()
	Eventually(t, condition, TestTimeout, 5*time.Millisecond)
}

// WaitForInt64 waits until the atomic value equals want.
func WaitForInt64(t testing.TB, value *int64, want int64, waitFor time.Duration) {
	t.Helper()
	Eventually(t, func() bool {
		return atomic.LoadInt64(value) == want
	}, waitFor, time.Millisecond)
}

// Blocked reports whether done stays open for the given window. It is the
// usual way to assert that a goroutine is parked inside a blocking call.
func Blocked(done <-chan struct{}, window time.Duration) bool {
	select {
	case <-done:
		return false
	case <-time.After(window):
		return true
	}
}
