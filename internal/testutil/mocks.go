package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// SafeBuffer is an io.Writer safe for concurrent use. Tests hand it to
// zerolog loggers and async writers, then inspect what background goroutines
// wrote. It can also delay or fail writes.
type SafeBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	writes   int
	delay    time.Duration
	failures int
	err      error
}

// NewSafeBuffer creates an empty SafeBuffer.
func NewSafeBuffer() *SafeBuffer {
	return &SafeBuffer{}
}

// Write implements io.Writer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.writes++
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.failures != 0 {
		if b.failures > 0 {
			b.failures--
		}
		return 0, b.err
	}
	return b.buf.Write(p)
}

// String returns the current buffer contents.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the non-empty lines written so far.
func (b *SafeBuffer) Lines() []string {
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// WriteCount returns the number of Write calls, failed ones included.
func (b *SafeBuffer) WriteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// SetWriteDelay makes every Write sleep for d first.
func (b *SafeBuffer) SetWriteDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// FailWrites makes the next n writes return err; n < 0 fails every write.
func (b *SafeBuffer) FailWrites(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = n
	b.err = err
}

// Reset clears the buffer and any injected delay or failure.
func (b *SafeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
	b.writes = 0
	b.delay = 0
	b.failures = 0
	b.err = nil
}

// CallbackTracker records invocations of hook callbacks such as OnBlock.
type CallbackTracker struct {
	mu    sync.Mutex
	count int
	value interface{}
}

// NewCallbackTracker creates a new CallbackTracker.
func NewCallbackTracker() *CallbackTracker {
	return &CallbackTracker{}
}

// Mark records a call, optionally remembering the last value passed.
func (c *CallbackTracker) Mark(value ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	if len(value) > 0 {
		c.value = value[0]
	}
}

// Called reports whether Mark was called at least once.
func (c *CallbackTracker) Called() bool {
	return c.CallCount() > 0
}

// CallCount returns the number of Mark calls.
func (c *CallbackTracker) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Value returns the last value passed to Mark.
func (c *CallbackTracker) Value() interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Reset clears the recorded calls.
func (c *CallbackTracker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.value = nil
}

// AssertCalled fails the test if Mark was never called.
func (c *CallbackTracker) AssertCalled(t testing.TB) {
	t.Helper()
	if !c.Called() {
		t.Fatal("expected callback to be called")
	}
}

// AssertNotCalled fails the test if Mark was called.
func (c *CallbackTracker) AssertNotCalled(t testing.TB) {
	t.Helper()
	if n := c.CallCount(); n != 0 {
		t.Fatalf("expected callback not to be called, got %d calls", n)
	}
}

// AssertCallCount fails the test unless Mark was called exactly want times.
func (c *CallbackTracker) AssertCallCount(t testing.TB, want int) {
	t.Helper()
	if got := c.CallCount(); got != want {
		t.Fatalf("call count = %d, want %d", got, want)
	}
}
