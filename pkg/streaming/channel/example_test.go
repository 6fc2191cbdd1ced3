package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Example demonstrates basic bounded channel usage.
func Example() {
	// Create a channel with capacity 3
	ch := New[int](3)
	defer ch.Close()

	// Send some values
	_ = ch.Send(1)
	_ = ch.Send(2)
	_ = ch.Send(3)

	fmt.Printf("Channel length: %d\n", ch.Len())

	// Receive values
	val1, _ := ch.Receive()
	val2, _ := ch.Receive()

	fmt.Printf("Received: %d, %d\n", val1, val2)
	fmt.Printf("Remaining length: %d\n", ch.Len())

	// Output:
	// Channel length: 3
	// Received: 1, 2
	// Remaining length: 1
}

// Example_blockingSend demonstrates a sender waiting for a free slot.
func Example_blockingSend() {
	ch := New[string](2)
	defer ch.Close()

	// Fill the buffer
	_ = ch.Send("first")
	_ = ch.Send("second")

	fmt.Printf("Buffer full: %d/%d\n", ch.Len(), ch.Cap())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ch.Send("third")
	}()

	// Receive to unblock the sender
	val, _ := ch.Receive()
	wg.Wait()

	fmt.Printf("Received: %s\n", val)
	fmt.Printf("Buffer: %d/%d\n", ch.Len(), ch.Cap())

	// Output:
	// Buffer full: 2/2
	// Received: first
	// Buffer: 2/2
}

// Example_close demonstrates draining a closed channel.
func Example_close() {
	ch := New[int](4)
	_ = ch.Send(1)
	_ = ch.Send(2)
	ch.Close()

	fmt.Println("Send after close:", ch.Send(3))

	for {
		v, err := ch.Receive()
		if errors.Is(err, ErrClosed) {
			fmt.Println("drained")
			break
		}
		fmt.Println("got", v)
	}

	// Output:
	// Send after close: channel is closed: resource is closed
	// got 1
	// got 2
	// drained
}

// Example_trySendReceive demonstrates the non-blocking variants.
func Example_trySendReceive() {
	ch := New[string](1)
	defer ch.Close()

	fmt.Println("TrySend:", ch.TrySend("hello"))
	fmt.Println("TrySend full:", errors.Is(ch.TrySend("world"), ErrFull))

	val, ok, _ := ch.TryReceive()
	fmt.Printf("TryReceive: %q %v\n", val, ok)

	_, ok, err := ch.TryReceive()
	fmt.Printf("TryReceive empty: %v %v\n", ok, err)

	// Output:
	// TrySend: <nil>
	// TrySend full: true
	// TryReceive: "hello" true
	// TryReceive empty: false <nil>
}

// Example_contextCancellation demonstrates giving up on a blocked receive.
func Example_contextCancellation() {
	ch := New[int](1)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ch.ReceiveContext(ctx)
	fmt.Println("Receive:", err)

	// Output:
	// Receive: context deadline exceeded
}

// Example_withTimeout demonstrates the timed variants.
func Example_withTimeout() {
	ch := New[int](1)
	defer ch.Close()

	_ = ch.Send(1)

	err := ch.SendTimeout(2, 10*time.Millisecond)
	fmt.Println("Timed out:", errors.Is(err, ErrTimeout))
	fmt.Println("Length:", ch.Len())

	// Output:
	// Timed out: true
	// Length: 1
}

// Example_statistics demonstrates channel statistics.
func Example_statistics() {
	ch := New[int](4)
	defer ch.Close()

	for i := 0; i < 3; i++ {
		_ = ch.Send(i)
	}
	_, _ = ch.Receive()

	stats := ch.Stats()
	fmt.Printf("Sent: %d\n", stats.SendCount)
	fmt.Printf("Received: %d\n", stats.ReceiveCount)
	fmt.Printf("Utilization: %.0f%%\n", stats.BufferUtilization*100)

	// Output:
	// Sent: 3
	// Received: 1
	// Utilization: 50%
}

// Example_producerConsumer demonstrates several producers with one closer.
func Example_producerConsumer() {
	ch := New[int](2)

	var producers sync.WaitGroup
	for p := 0; p < 3; p++ {
		producers.Add(1)
		go func(id int) {
			defer producers.Done()
			for i := 0; i < 5; i++ {
				_ = ch.Send(id*10 + i)
			}
		}(p)
	}

	go func() {
		producers.Wait()
		ch.Close()
	}()

	sum := 0
	for v := range All[int](ch) {
		sum += v
	}
	fmt.Println("Sum:", sum)

	// Output:
	// Sum: 180
}

// Example_range demonstrates Range with a context.
func Example_range() {
	ch := New[string](3)
	_ = ch.Send("a")
	_ = ch.Send("b")
	ch.Close()

	err := Range[string](context.Background(), ch, func(s string) error {
		fmt.Println(s)
		return nil
	})
	fmt.Println("err:", err)

	// Output:
	// a
	// b
	// err: <nil>
}
