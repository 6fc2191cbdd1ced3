package benchmark

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/vnykmshr/chanflow/pkg/container/deque"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
)

// BenchmarkChannelSend measures send operation performance.
func BenchmarkChannelSend(b *testing.B) {
	capacities := []int{1, 10, 100, 1000}

	for _, capacity := range capacities {
		b.Run(sizeLabel(capacity), func(b *testing.B) {
			ch := channel.New[int](capacity)

			// Consumer goroutine
			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					if _, err := ch.Receive(); err != nil {
						return
					}
				}
			}()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = ch.Send(i)
			}
			b.StopTimer()

			ch.Close()
			<-done
		})
	}
}

// BenchmarkChannelReceive measures receive operation performance.
func BenchmarkChannelReceive(b *testing.B) {
	ch := channel.New[int](1000)

	// Producer goroutine to keep filling
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			if err := ch.Send(i); err != nil {
				return
			}
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ch.Receive()
	}
	b.StopTimer()

	ch.Close()
	<-done
}

// BenchmarkChannelContention measures performance under concurrent access,
// next to a native Go channel of the same capacity.
func BenchmarkChannelContention(b *testing.B) {
	contentionLevels := []int{2, 4, 8, 16}

	for _, producers := range contentionLevels {
		consumers := producers / 2
		if consumers < 1 {
			consumers = 1
		}

		b.Run("bounded_"+contentionLabel(producers), func(b *testing.B) {
			ch := channel.New[int](100)

			var consumerWg sync.WaitGroup
			consumerWg.Add(consumers)
			for i := 0; i < consumers; i++ {
				go func() {
					defer consumerWg.Done()
					for {
						if _, err := ch.Receive(); err != nil {
							return
						}
					}
				}()
			}

			b.ReportAllocs()
			b.ResetTimer()
			runProducers(producers, b.N, func(v int) { _ = ch.Send(v) })
			b.StopTimer()

			ch.Close()
			consumerWg.Wait()
		})

		b.Run("native_"+contentionLabel(producers), func(b *testing.B) {
			ch := make(chan int, 100)

			var consumerWg sync.WaitGroup
			consumerWg.Add(consumers)
			for i := 0; i < consumers; i++ {
				go func() {
					defer consumerWg.Done()
					for range ch {
					}
				}()
			}

			b.ReportAllocs()
			b.ResetTimer()
			runProducers(producers, b.N, func(v int) { ch <- v })
			b.StopTimer()

			close(ch)
			consumerWg.Wait()
		})
	}
}

// BenchmarkChannelSendContext measures the cost of a cancellable send that
// has to wait for space.
func BenchmarkChannelSendContext(b *testing.B) {
	ch := channel.New[int](1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := ch.Receive(); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ch.SendContext(ctx, i)
	}
	b.StopTimer()

	ch.Close()
	<-done
}

// BenchmarkChannelTryOperations measures non-blocking operations.
func BenchmarkChannelTryOperations(b *testing.B) {
	b.Run("TrySend_Full", func(b *testing.B) {
		ch := channel.New[int](1)
		defer ch.Close()
		_ = ch.Send(0)

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = ch.TrySend(i)
		}
	})

	b.Run("TrySend_TryReceive", func(b *testing.B) {
		ch := channel.New[int](100)
		defer ch.Close()

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = ch.TrySend(i)
			_, _, _ = ch.TryReceive()
		}
	})
}

// BenchmarkDeque measures push/pop at both ends.
func BenchmarkDeque(b *testing.B) {
	b.Run("PushBack_PopFront", func(b *testing.B) {
		d := deque.New[int](0)

		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			d.PushBack(i)
			d.PopFront()
		}
	})

	b.Run("Grow", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			d := deque.New[int](0)
			for j := 0; j < 1000; j++ {
				d.PushFront(j)
			}
		}
	})
}

// runProducers splits n sends across producers goroutines and waits for them.
func runProducers(producers, n int, send func(int)) {
	var wg sync.WaitGroup
	perProducer := n / producers
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				send(i)
			}
		}()
	}
	wg.Wait()
}

// contentionLabel returns a readable label for contention levels.
func contentionLabel(level int) string {
	return strconv.Itoa(level) + "producers"
}

// sizeLabel returns a readable label for sizes.
func sizeLabel(size int) string {
	return "size" + strconv.Itoa(size)
}
