/*
Package scheduling provides task execution primitives for Go applications.

  - workerpool: Fixed worker pool for concurrent task execution

Worker Pool:

The worker pool provides controlled concurrent execution. Its task queue is a
bounded channel, so Submit waits while the queue is full:

	pool := workerpool.New(4, 100) // 4 workers, queue size 100
	defer func() { <-pool.Shutdown() }()

	task := workerpool.TaskFunc(func(ctx context.Context) error {
		// Do work
		return nil
	})

	pool.Submit(task)
	result, err := pool.Results().Receive()

Shutdown stops intake, lets queued tasks finish and then closes Results.
Periodic work, such as sampling queue lengths, lives in package monitor.
*/
package scheduling
