package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/chanflow/pkg/common/validation"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Result represents the result of a task execution.
type Result struct {
	// Task is the original task that was executed
	Task Task

	// Error is any error that occurred during task execution
	Error error

	// Duration is how long the task took to execute
	Duration time.Duration

	// WorkerID identifies which worker executed the task
	WorkerID int
}

// Pool represents a worker pool that executes queued tasks concurrently.
type Pool interface {
	// Submit queues a task, waiting while the queue is full.
	// Returns channel.ErrClosed once the pool is shut down.
	Submit(task Task) error

	// SubmitWithTimeout is Submit that gives up with channel.ErrTimeout
	// when the task cannot be queued within timeout.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// SubmitWithContext is Submit that gives up with ctx.Err() when ctx ends
	// before the task is queued. The same ctx is passed to Execute.
	SubmitWithContext(ctx context.Context, task Task) error

	// TrySubmit queues a task without waiting. Returns channel.ErrFull when
	// the queue is full.
	TrySubmit(task Task) error

	// Results returns the receiver of task results. It is closed once the
	// pool has shut down and every result has been delivered, unless
	// Config.DiscardResults is set, in which case it is closed immediately.
	Results() channel.Receiver[Result]

	// Shutdown stops accepting tasks. Queued tasks still run.
	// Returns a channel that closes when every worker has exited. Workers
	// wait for room in the results buffer, so read Results, set
	// DiscardResults, or use ShutdownWithTimeout.
	Shutdown() <-chan struct{}

	// ShutdownWithTimeout is Shutdown that cancels running tasks, and skips
	// the ones still queued, once timeout elapses. From then on workers no
	// longer wait for a full results buffer: results that do not fit are
	// dropped, so the returned channel closes even if Results is never read.
	ShutdownWithTimeout(timeout time.Duration) <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the current number of queued tasks waiting for execution.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks accepted by the pool.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks that finished, with or
	// without an error.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// WorkerCount is the number of workers in the pool.
	// Must be greater than 0.
	WorkerCount int

	// QueueSize is the capacity of the task queue. Submit blocks while it is
	// full. Zero means WorkerCount.
	QueueSize int

	// ResultBufferSize is the capacity of the results channel. Workers wait
	// for space, so results must be read unless DiscardResults is set.
	// Zero means WorkerCount.
	ResultBufferSize int

	// DiscardResults drops results instead of delivering them through Results.
	DiscardResults bool

	// TaskTimeout is the default timeout for individual task execution.
	// Zero means no timeout.
	TaskTimeout time.Duration

	// PanicHandler is called when a task panics during execution.
	// The panic is always recovered and reported in Result.Error.
	PanicHandler func(task Task, recovered interface{})

	// OnTaskStart is called before a task begins execution.
	OnTaskStart func(workerID int, task Task)

	// OnTaskComplete is called after a task completes (success or failure).
	OnTaskComplete func(workerID int, result Result)

	// Logger receives worker lifecycle and task failure events.
	// Nil means zerolog.Nop().
	Logger *zerolog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueSize:   100,
	}
}

// Validate reports the first invalid field of c.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("workerpool", "workerCount", c.WorkerCount); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("workerpool", "queueSize", c.QueueSize); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("workerpool", "resultBufferSize", c.ResultBufferSize); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("workerpool", "taskTimeout", c.TaskTimeout)
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config
	logger zerolog.Logger

	// Core pool state
	taskQueue   channel.Channel[taskWithContext]
	resultQueue channel.Channel[Result]

	// abortCtx is canceled when a shutdown timeout expires.
	abortCtx     context.Context
	abort        context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}

	// State tracking
	activeWorkers  atomic.Int64
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64

	// Worker management
	workerWg sync.WaitGroup
}

// taskWithContext carries the submitter's context to the worker.
type taskWithContext struct {
	task Task
	ctx  context.Context
}

// worker represents a single worker in the pool.
type worker struct {
	id   int
	pool *workerPool
}

// New creates a new worker pool with the specified number of workers and queue size.
// It panics on an invalid configuration; use NewSafe to get an error instead.
func New(workerCount, queueSize int) Pool {
	return NewWithConfig(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewSafe is New returning an error instead of panicking.
func NewSafe(workerCount, queueSize int) (Pool, error) {
	return NewWithConfigSafe(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	})
}

// NewWithConfig creates a new worker pool with the specified configuration.
// It panics on an invalid configuration.
func NewWithConfig(config Config) Pool {
	pool, err := NewWithConfigSafe(config)
	if err != nil {
		panic("invalid worker pool configuration: " + err.Error())
	}
	return pool
}

// NewWithConfigSafe creates a new worker pool, returning an error instead of
// panicking on an invalid configuration. Workers start immediately.
func NewWithConfigSafe(config Config) (Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.QueueSize == 0 {
		config.QueueSize = config.WorkerCount
	}
	if config.ResultBufferSize == 0 {
		config.ResultBufferSize = config.WorkerCount
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	abortCtx, abort := context.WithCancel(context.Background())
	pool := &workerPool{
		config:      config,
		logger:      logger.With().Str("component", "workerpool").Logger(),
		taskQueue:   channel.New[taskWithContext](config.QueueSize),
		resultQueue: channel.New[Result](config.ResultBufferSize),
		abortCtx:    abortCtx,
		abort:       abort,
		done:        make(chan struct{}),
	}
	if config.DiscardResults {
		pool.resultQueue.Close()
	}

	// Create and start workers
	for i := 0; i < config.WorkerCount; i++ {
		w := &worker{id: i, pool: pool}
		pool.workerWg.Add(1)
		go w.run()
	}

	return pool, nil
}
