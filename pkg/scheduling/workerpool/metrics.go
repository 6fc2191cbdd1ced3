package workerpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/chanflow/pkg/metrics"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsPool)(nil)

// NewWithMetrics creates a new worker pool with metrics enabled.
// It panics on an invalid configuration.
func NewWithMetrics(workerCount, queueSize int, name string) Pool {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	config := metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	}

	return NewWithConfigAndMetrics(Config{
		WorkerCount: workerCount,
		QueueSize:   queueSize,
	}, name, config)
}

// NewWithConfigAndMetrics creates a new worker pool with custom config and metrics.
// It panics on an invalid configuration. The Config hooks receive the
// instrumented task wrapper rather than the submitted task.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) Pool {
	basePool := NewWithConfig(config)

	if !metricsConfig.Enabled {
		return basePool
	}

	mp := &MetricsPool{
		pool: basePool,
		name: name,
	}
	_ = mp.EnableMetrics(metricsConfig)

	return mp
}

// activeRegistry returns the registry to record into, or nil when disabled.
func (mp *MetricsPool) activeRegistry() *metrics.Registry {
	if !mp.enabled.Load() {
		return nil
	}
	return mp.registry.Load()
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	registry := mp.activeRegistry()
	if registry == nil {
		return
	}

	registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(mp.pool.Size()))
	registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(task Task) error {
	return mp.recordSubmit(mp.pool.Submit(mp.wrap(task)))
}

// SubmitWithTimeout submits a task with a timeout for queuing.
func (mp *MetricsPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	return mp.recordSubmit(mp.pool.SubmitWithTimeout(mp.wrap(task), timeout))
}

// SubmitWithContext submits a task with a context for cancellation.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, task Task) error {
	return mp.recordSubmit(mp.pool.SubmitWithContext(ctx, mp.wrap(task)))
}

// TrySubmit queues a task without waiting.
func (mp *MetricsPool) TrySubmit(task Task) error {
	return mp.recordSubmit(mp.pool.TrySubmit(mp.wrap(task)))
}

func (mp *MetricsPool) wrap(task Task) Task {
	if task == nil {
		return nil
	}
	return &metricsTask{original: task, pool: mp}
}

func (mp *MetricsPool) recordSubmit(err error) error {
	if registry := mp.activeRegistry(); registry != nil && err == nil {
		registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
	}
	mp.updateMetrics()
	return err
}

// metricsTask wraps a Task to collect execution metrics.
type metricsTask struct {
	original Task
	pool     *MetricsPool
}

// Execute runs the original task and records metrics.
func (mt *metricsTask) Execute(ctx context.Context) error {
	start := time.Now()
	mt.pool.updateMetrics()

	err := mt.original.Execute(ctx)

	if registry := mt.pool.activeRegistry(); registry != nil {
		registry.TaskExecutionDuration.WithLabelValues(mt.pool.name).Observe(time.Since(start).Seconds())

		if err != nil {
			registry.TasksFailed.WithLabelValues(mt.pool.name).Inc()
		} else {
			registry.TasksCompleted.WithLabelValues(mt.pool.name).Inc()
		}
	}

	return err
}

// Results returns the receiver of task results. Result.Task holds the task
// as submitted, not the metrics wrapper.
func (mp *MetricsPool) Results() channel.Receiver[Result] {
	return unwrappingReceiver{mp.pool.Results()}
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	done := mp.pool.Shutdown()
	mp.updateMetrics()
	return done
}

// ShutdownWithTimeout shuts down the pool with a timeout.
func (mp *MetricsPool) ShutdownWithTimeout(timeout time.Duration) <-chan struct{} {
	return mp.pool.ShutdownWithTimeout(timeout)
}

// Size returns the current number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	queueSize := mp.pool.QueueSize()

	if registry := mp.activeRegistry(); registry != nil {
		registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(queueSize))
	}

	return queueSize
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	activeWorkers := mp.pool.ActiveWorkers()

	if registry := mp.activeRegistry(); registry != nil {
		registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(activeWorkers))
	}

	return activeWorkers
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	mp.registry.Store(metrics.RegistryFor(config))
	mp.enabled.Store(config.Enabled)

	mp.updateMetrics()
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled.Load()
}

// unwrappingReceiver restores the submitted task in each Result.
type unwrappingReceiver struct {
	channel.Receiver[Result]
}

func unwrap(r Result) Result {
	if mt, ok := r.Task.(*metricsTask); ok {
		r.Task = mt.original
	}
	return r
}

func (u unwrappingReceiver) Receive() (Result, error) {
	r, err := u.Receiver.Receive()
	return unwrap(r), err
}

func (u unwrappingReceiver) ReceiveContext(ctx context.Context) (Result, error) {
	r, err := u.Receiver.ReceiveContext(ctx)
	return unwrap(r), err
}

func (u unwrappingReceiver) ReceiveTimeout(d time.Duration) (Result, error) {
	r, err := u.Receiver.ReceiveTimeout(d)
	return unwrap(r), err
}

func (u unwrappingReceiver) TryReceive() (Result, bool, error) {
	r, ok, err := u.Receiver.TryReceive()
	return unwrap(r), ok, err
}
