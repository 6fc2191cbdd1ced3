package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	gferrors "github.com/vnykmshr/chanflow/pkg/common/errors"
	"github.com/vnykmshr/chanflow/pkg/common/validation"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
)

// Submit adds a task to the pool for execution.
// The task will be executed with context.Background().
// Use SubmitWithContext to provide a custom context.
func (p *workerPool) Submit(task Task) error {
	return p.SubmitWithContext(context.Background(), task)
}

// SubmitWithTimeout implements Pool.SubmitWithTimeout.
func (p *workerPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	if err := validateTask(task); err != nil {
		return err
	}
	return p.accepted(p.taskQueue.SendTimeout(taskWithContext{task: task, ctx: context.Background()}, timeout))
}

// SubmitWithContext adds a task to the pool for execution with the given context.
// The context is passed to the task's Execute method, enabling timeout and
// cancellation propagation. If the pool has a TaskTimeout configured, the
// effective timeout will be the minimum of the context deadline and TaskTimeout.
func (p *workerPool) SubmitWithContext(ctx context.Context, task Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return p.accepted(p.taskQueue.SendContext(ctx, taskWithContext{task: task, ctx: ctx}))
}

// TrySubmit implements Pool.TrySubmit.
func (p *workerPool) TrySubmit(task Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	return p.accepted(p.taskQueue.TrySend(taskWithContext{task: task, ctx: context.Background()}))
}

// accepted counts a successfully queued task and wraps queue errors.
func (p *workerPool) accepted(err error) error {
	if err != nil {
		return gferrors.NewOperationError("workerpool", "submit", err)
	}
	p.totalSubmitted.Add(1)
	return nil
}

func validateTask(task Task) error {
	if task == nil {
		return validation.ValidateNotNil("workerpool", "task", nil)
	}
	return nil
}

// Results returns the receiver of task results.
func (p *workerPool) Results() channel.Receiver[Result] {
	return p.resultQueue
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.logger.Debug().Int("queued", p.taskQueue.Len()).Msg("shutting down")

		// Closing the queue is the only stop signal: workers drain what is
		// left and exit on ErrClosed.
		p.taskQueue.Close()

		go func() {
			p.workerWg.Wait()
			p.resultQueue.Close()
			p.abort()
			close(p.done)
		}()
	})

	return p.done
}

// ShutdownWithTimeout implements Pool.ShutdownWithTimeout.
func (p *workerPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	done := p.Shutdown()

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			p.logger.Warn().Dur("timeout", timeout).Msg("shutdown timed out, canceling remaining tasks")
			p.abort()
		}
	}()

	return done
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.WorkerCount
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return p.taskQueue.Len()
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks accepted by the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks that finished.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	log := w.pool.logger.With().Int("worker", w.id).Logger()
	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	for {
		twc, err := w.pool.taskQueue.Receive()
		if err != nil {
			// Queue closed and drained
			return
		}
		w.executeTask(twc)
	}
}

// sendResult delivers a task result, waiting for the reader if the results
// buffer is full. The wait ends when a shutdown timeout expires; a result
// that still finds the buffer full after that is dropped, so an unread
// results channel cannot keep workers alive.
func (w *worker) sendResult(result Result) {
	if w.pool.config.DiscardResults {
		return
	}
	if err := w.pool.resultQueue.SendContext(w.pool.abortCtx, result); err != nil {
		w.pool.logger.Debug().Err(result.Error).Int("worker", w.id).Msg("result dropped after shutdown timeout")
	}
}

// executeTask executes a single task with the provided context.
func (w *worker) executeTask(twc taskWithContext) {
	start := time.Now()
	var err error

	w.pool.activeWorkers.Add(1)

	// Handle panics during task execution
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack())
			if w.pool.config.PanicHandler != nil {
				w.pool.config.PanicHandler(twc.task, r)
			}
		}

		w.pool.activeWorkers.Add(-1)
		w.pool.totalCompleted.Add(1)

		result := Result{
			Task:     twc.task,
			Error:    err,
			Duration: time.Since(start),
			WorkerID: w.id,
		}
		if err != nil {
			w.pool.logger.Debug().Err(err).Int("worker", w.id).Dur("duration", result.Duration).Msg("task failed")
		}
		if w.pool.config.OnTaskComplete != nil {
			w.pool.config.OnTaskComplete(w.id, result)
		}

		w.sendResult(result)
	}()

	// An aborted pool reports the remaining queued tasks without running them.
	if err = w.pool.abortCtx.Err(); err != nil {
		return
	}

	// Start with the caller-provided context, canceled on abort
	ctx, cancel := context.WithCancel(twc.ctx)
	defer cancel()
	stop := context.AfterFunc(w.pool.abortCtx, cancel)
	defer stop()

	// Apply TaskTimeout if configured
	// The effective timeout is the minimum of the context deadline and TaskTimeout
	if w.pool.config.TaskTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, w.pool.config.TaskTimeout)
		defer cancelTimeout()
	}

	if w.pool.config.OnTaskStart != nil {
		w.pool.config.OnTaskStart(w.id, twc.task)
	}

	// Execute the task with the propagated context
	err = twc.task.Execute(ctx)
}
