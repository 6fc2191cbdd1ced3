package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/chanflow/internal/testutil"
	"github.com/vnykmshr/chanflow/pkg/container/deque"
	"github.com/vnykmshr/chanflow/pkg/monitor"
	"github.com/vnykmshr/chanflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
	"github.com/vnykmshr/chanflow/pkg/streaming/writer"
)

// TestCoordinatorClosesAfterProducers runs several producers and consumers
// over one small channel. The channel is closed once every producer has
// returned; consumers stop on ErrClosed after draining it.
func TestCoordinatorClosesAfterProducers(t *testing.T) {
	const (
		producers   = 6
		consumers   = 3
		perProducer = 500
	)

	ch := channel.New[int](2)

	var producerWg sync.WaitGroup
	for p := 0; p < producers; p++ {
		producerWg.Add(1)
		go func(p int) {
			defer producerWg.Done()
			for i := 0; i < perProducer; i++ {
				if err := ch.Send(p*perProducer + i); err != nil {
					t.Errorf("send: %v", err)
					return
				}
			}
		}(p)
	}

	seen := make([]atomic.Int32, producers*perProducer)
	var consumerWg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				v, err := ch.Receive()
				if errors.Is(err, channel.ErrClosed) {
					return
				}
				if err != nil {
					t.Errorf("receive: %v", err)
					return
				}
				seen[v].Add(1)
			}
		}()
	}

	producerWg.Wait()
	ch.Close()
	consumerWg.Wait()

	for v := range seen {
		if n := seen[v].Load(); n != 1 {
			t.Fatalf("item %d delivered %d times", v, n)
		}
	}

	stats := ch.Stats()
	testutil.AssertEqual(t, stats.SendCount, int64(producers*perProducer))
	testutil.AssertEqual(t, stats.ReceiveCount, int64(producers*perProducer))
	testutil.AssertErrorIs(t, ch.Send(1), channel.ErrClosed)
}

// TestPoolFeedsChannel uses a worker pool as a producer stage: tasks write
// into a bounded channel that a single consumer reads.
func TestPoolFeedsChannel(t *testing.T) {
	out := channel.New[int](4)
	pool, err := workerpool.NewWithConfigSafe(workerpool.Config{
		WorkerCount:    4,
		QueueSize:      8,
		DiscardResults: true,
	})
	testutil.AssertNoError(t, err)

	done := make(chan int)
	go func() {
		sum := 0
		for v := range channel.All(out) {
			sum += v
		}
		done <- sum
	}()

	for i := 1; i <= 100; i++ {
		v := i
		err := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
			return out.SendContext(ctx, v*v)
		}))
		testutil.AssertNoError(t, err)
	}

	<-pool.Shutdown()
	out.Close()

	testutil.AssertEqual(t, <-done, 338350)
	testutil.AssertEqual(t, pool.TotalCompleted(), int64(100))
}

// TestCloseUnblocksEveryWaiter parks senders on a full channel and receivers
// on an empty one, then closes both.
func TestCloseUnblocksEveryWaiter(t *testing.T) {
	full := channel.New[int](1)
	testutil.AssertNoError(t, full.Send(0))
	empty := channel.New[int](1)

	errs := make(chan error, 8)
	for i := 0; i < 4; i++ {
		go func() { errs <- full.Send(1) }()
		go func() {
			_, err := empty.Receive()
			errs <- err
		}()
	}

	testutil.AssertEventually(t, func() bool {
		return full.Stats().BlockedSends == 4 && empty.Stats().BlockedReceives == 4
	})

	full.Close()
	empty.Close()

	for i := 0; i < 8; i++ {
		select {
		case err := <-errs:
			testutil.AssertErrorIs(t, err, channel.ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("waiter not released by Close")
		}
	}

	// The item sent before Close is still delivered.
	v, err := full.Receive()
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, v, 0)
}

// TestRetryBacklog pulls jobs from a channel and pushes failures to the front
// of a deque so they are retried first, oldest failure last.
func TestRetryBacklog(t *testing.T) {
	jobs := channel.New[int](8)
	for i := 0; i < 8; i++ {
		testutil.AssertNoError(t, jobs.Send(i))
	}
	jobs.Close()

	var retry deque.Deque[int]
	var done []int
	for job := range channel.All(jobs) {
		if job%3 == 0 {
			retry.PushFront(job)
			continue
		}
		done = append(done, job)
	}

	testutil.AssertEqual(t, len(done), 5)
	testutil.AssertEqual(t, retry.Len(), 3)

	var order []int
	for {
		job, ok := retry.PopFront()
		if !ok {
			break
		}
		order = append(order, job)
	}
	testutil.AssertEqual(t, len(order), 3)
	testutil.AssertEqual(t, order[0], 6)
	testutil.AssertEqual(t, order[1], 3)
	testutil.AssertEqual(t, order[2], 0)
}

// TestMonitorObservesBackpressure samples a saturated channel, a deque
// backlog and a worker pool queue side by side.
func TestMonitorObservesBackpressure(t *testing.T) {
	ch := channel.New[int](2)
	testutil.AssertNoError(t, ch.Send(1))
	testutil.AssertNoError(t, ch.Send(2))
	defer ch.Close()

	backlog := deque.New[int](0)
	backlog.PushBack(1)
	backlog.PushBack(2)
	backlog.PushBack(3)

	release := make(chan struct{})
	pool, err := workerpool.NewWithConfigSafe(workerpool.Config{
		WorkerCount:    1,
		QueueSize:      4,
		DiscardResults: true,
	})
	testutil.AssertNoError(t, err)
	defer func() {
		close(release)
		<-pool.Shutdown()
	}()

	block := workerpool.TaskFunc(func(ctx context.Context) error {
		<-release
		return nil
	})
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, pool.Submit(block))
	}
	testutil.AssertEventually(t, func() bool { return pool.ActiveWorkers() == 1 })

	mon, err := monitor.New(monitor.Config{})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, mon.Add("channel", ch))
	testutil.AssertNoError(t, mon.Add("backlog", backlog))
	testutil.AssertNoError(t, mon.Add("pool", monitor.LenFunc(pool.QueueSize)))

	samples := mon.SampleNow()
	testutil.AssertEqual(t, len(samples), 3)

	byName := make(map[string]monitor.Sample)
	for _, s := range samples {
		byName[s.Source] = s
	}
	testutil.AssertEqual(t, byName["channel"].Utilization, 1.0)
	testutil.AssertEqual(t, byName["backlog"].Len, 3)
	testutil.AssertEqual(t, byName["pool"].Len, 2)

	testutil.AssertErrorIs(t, ch.TrySend(3), channel.ErrFull)
}

// TestWorkersShareOneWriter has pool workers report through one AsyncWriter.
// The writer is closed after the pool, and every line reaches the sink.
func TestWorkersShareOneWriter(t *testing.T) {
	sink := testutil.NewSafeBuffer()
	config := writer.DefaultConfig()
	config.QueueSize = 2
	config.BufferSize = 32
	config.FlushInterval = 5 * time.Millisecond
	w := writer.NewWithConfig(sink, config)

	pool, err := workerpool.NewWithConfigSafe(workerpool.Config{
		WorkerCount:    4,
		QueueSize:      8,
		DiscardResults: true,
	})
	testutil.AssertNoError(t, err)

	var failed atomic.Int64
	for i := 0; i < 50; i++ {
		err := pool.Submit(workerpool.TaskFunc(func(ctx context.Context) error {
			if err := w.WriteContext(ctx, []byte(fmt.Sprintf("task %d done\n", i))); err != nil {
				failed.Add(1)
				return err
			}
			return nil
		}))
		testutil.AssertNoError(t, err)
	}
	<-pool.Shutdown()
	testutil.AssertEqual(t, failed.Load(), int64(0))

	mon, err := monitor.New(monitor.Config{})
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, mon.Add("writer", w))

	testutil.AssertNoError(t, w.Close())
	testutil.AssertEqual(t, len(sink.Lines()), 50)
	testutil.AssertEqual(t, w.Stats().WriteCount, int64(50))

	samples := mon.SampleNow()
	testutil.AssertEqual(t, samples[0].Len, 0)
	testutil.AssertEqual(t, samples[0].Closed, true)
}
