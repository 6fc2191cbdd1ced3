/*
Package workerpool runs tasks on a fixed number of worker goroutines fed by a
bounded task queue.

The queue is a channel.Channel: Submit blocks while it is full, so a slow pool
pushes back on its producers instead of growing without limit.

Basic usage:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	if err := pool.Submit(task); err != nil {
		log.Printf("Failed to submit: %v", err)
	}

	// Process result
	result, err := pool.Results().Receive()
	if err == nil && result.Error != nil {
		log.Printf("Task failed: %v", result.Error)
	}

	<-pool.Shutdown()

Submitting:

	pool.Submit(task)                          // wait for queue space
	pool.SubmitWithContext(ctx, task)          // ... or until ctx ends; ctx is also passed to Execute
	pool.SubmitWithTimeout(task, time.Second)  // ... or until the timeout (channel.ErrTimeout)
	pool.TrySubmit(task)                       // never wait (channel.ErrFull)

After Shutdown every submission fails with an error matching channel.ErrClosed.

Results:

Each executed task produces one Result on Results, which is itself a bounded
channel of ResultBufferSize. Workers wait for the reader when it is full, so
either read results or set DiscardResults. Results is closed after the last
worker exits; a reader can loop with channel.All:

	for result := range channel.All(pool.Results()) {
		if result.Error != nil {
			log.Printf("worker %d: %v", result.WorkerID, result.Error)
		}
	}

Shutdown:

Shutdown closes the task queue. Workers finish the tasks already queued, then
exit. ShutdownWithTimeout additionally cancels running tasks after the timeout
and reports the tasks still queued with context.Canceled instead of running
them.

Panics:

A panicking task does not kill its worker. The panic is recovered, passed to
Config.PanicHandler if set, and reported in Result.Error.

Configuration:

	config := workerpool.Config{
		WorkerCount:    8,
		QueueSize:      1000,
		TaskTimeout:    30 * time.Second,
		DiscardResults: true,
		OnTaskComplete: func(workerID int, result workerpool.Result) {
			metrics.Observe(result.Duration)
		},
		Logger: &logger,
	}
	pool, err := workerpool.NewWithConfigSafe(config)

Metrics:

NewWithMetrics and NewWithConfigAndMetrics wrap a pool with Prometheus
counters for submitted, completed and failed tasks, a task duration
histogram, and gauges for pool size, active workers and queue length.
*/
package workerpool
