/*
Package channel provides a bounded, closable FIFO channel for handing values
between any number of producer and consumer goroutines.

A Channel holds at most Cap items. Senders block while it is full, receivers
block while it is empty, and nothing is ever dropped: every item accepted by
Send is delivered by exactly one Receive, in the order it was accepted.

Basic Usage:

	ch := channel.New[string](100)

	// Producer
	go func() {
		defer ch.Close()
		for _, line := range lines {
			if err := ch.Send(line); err != nil {
				return // closed by someone else
			}
		}
	}()

	// Consumer
	for {
		line, err := ch.Receive()
		if errors.Is(err, channel.ErrClosed) {
			break // closed and drained
		}
		process(line)
	}

New panics on a non-positive capacity; NewSafe returns a validation error
instead:

	ch, err := channel.NewSafe[Job](cfg.QueueSize)
	if err != nil {
		return err
	}

Closing:

Close is idempotent and may be called from any goroutine. After Close:

  - Send and TrySend fail with ErrClosed and do not enqueue their value.
  - Items already buffered remain available to Receive.
  - Receive returns ErrClosed only once the buffer is empty.
  - Every goroutine blocked in Send or Receive is woken.

With several producers, close the channel once after all of them are done.
A Send racing with Close either completes before the close or fails with
ErrClosed; it never enqueues after it.

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			produce(ch)
		}()
	}
	go func() {
		wg.Wait()
		ch.Close()
	}()

Waiting Variants:

Each side comes in four forms:

	ch.Send(v)                    // wait for space
	ch.SendContext(ctx, v)        // ... or until ctx ends (returns ctx.Err())
	ch.SendTimeout(v, time.Second) // ... or until the timeout (returns ErrTimeout)
	ch.TrySend(v)                 // never wait (returns ErrFull)

	v, err := ch.Receive()
	v, err := ch.ReceiveContext(ctx)
	v, err := ch.ReceiveTimeout(time.Second)
	v, ok, err := ch.TryReceive() // ok == false, err == nil: empty but open

A call that can complete immediately does so even if its context is already
done. A canceled or timed-out call leaves the channel unchanged.

Config.SendTimeout and Config.ReceiveTimeout bound the Context variants. The
OnBlock and OnStarve hooks run, without the channel lock held, whenever a send
or receive has to wait.

Consuming:

Drain, Range and All read a receiver until it is closed and drained:

	for job := range channel.All(jobs) {
		handle(job)
	}

	err := channel.Range(ctx, jobs, func(j Job) error {
		return handle(j)
	})

Errors:

ErrClosed, ErrFull and ErrTimeout wrap the sentinels in pkg/common/errors, so
callers can test for errors.ErrClosed, errors.ErrCapacityExceeded and
errors.ErrTimeout without importing this package.

Metrics:

NewWithMetrics and NewWithConfigAndMetrics return a Channel that records sends,
receives, rejections, wait times and buffer occupancy in Prometheus. See
package metrics for the metric names.
*/
package channel
