package channel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/chanflow/pkg/metrics"
)

const (
	opSend    = "send"
	opReceive = "receive"
)

// MetricsChannel wraps a Channel with Prometheus metrics collection.
type MetricsChannel[T any] struct {
	ch       Channel[T]
	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsChannel[int])(nil)

// NewWithMetrics creates a bounded channel with metrics enabled.
// It panics if capacity is not positive.
func NewWithMetrics[T any](capacity int, name string) Channel[T] {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	config := metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	}

	cfg := DefaultConfig()
	cfg.Capacity = capacity
	return NewWithConfigAndMetrics[T](cfg, name, config)
}

// NewWithConfigAndMetrics creates a bounded channel with custom config and metrics.
// It panics on an invalid configuration.
func NewWithConfigAndMetrics[T any](config Config, name string, metricsConfig metrics.Config) Channel[T] {
	ch, err := NewWithConfigAndMetricsSafe[T](config, name, metricsConfig)
	if err != nil {
		panic("invalid channel configuration: " + err.Error())
	}
	return ch
}

// NewWithConfigAndMetricsSafe is NewWithConfigAndMetrics returning an error
// instead of panicking.
func NewWithConfigAndMetricsSafe[T any](config Config, name string, metricsConfig metrics.Config) (Channel[T], error) {
	if !metricsConfig.Enabled {
		return NewWithConfigSafe[T](config)
	}

	mc := &MetricsChannel[T]{name: name}

	onBlock, onStarve := config.OnBlock, config.OnStarve
	config.OnBlock = func() {
		mc.observeWait(opSend)
		if onBlock != nil {
			onBlock()
		}
	}
	config.OnStarve = func() {
		mc.observeWait(opReceive)
		if onStarve != nil {
			onStarve()
		}
	}

	inner, err := NewWithConfigSafe[T](config)
	if err != nil {
		return nil, err
	}
	mc.ch = inner

	if err := mc.EnableMetrics(metricsConfig); err != nil {
		return nil, err
	}
	return mc, nil
}

// Send sends a value, recording latency and outcome.
func (mc *MetricsChannel[T]) Send(value T) error {
	start := time.Now()
	err := mc.ch.Send(value)
	mc.recordSend(start, err)
	return err
}

// SendContext sends a value with a context, recording latency and outcome.
func (mc *MetricsChannel[T]) SendContext(ctx context.Context, value T) error {
	start := time.Now()
	err := mc.ch.SendContext(ctx, value)
	mc.recordSend(start, err)
	return err
}

// SendTimeout sends a value with a timeout, recording latency and outcome.
func (mc *MetricsChannel[T]) SendTimeout(value T, d time.Duration) error {
	start := time.Now()
	err := mc.ch.SendTimeout(value, d)
	mc.recordSend(start, err)
	return err
}

// TrySend attempts a non-blocking send, recording the outcome.
func (mc *MetricsChannel[T]) TrySend(value T) error {
	start := time.Now()
	err := mc.ch.TrySend(value)
	mc.recordSend(start, err)
	return err
}

// Receive receives a value, recording latency and outcome.
func (mc *MetricsChannel[T]) Receive() (T, error) {
	start := time.Now()
	value, err := mc.ch.Receive()
	mc.recordReceive(start, true, err)
	return value, err
}

// ReceiveContext receives a value with a context, recording latency and outcome.
func (mc *MetricsChannel[T]) ReceiveContext(ctx context.Context) (T, error) {
	start := time.Now()
	value, err := mc.ch.ReceiveContext(ctx)
	mc.recordReceive(start, true, err)
	return value, err
}

// ReceiveTimeout receives a value with a timeout, recording latency and outcome.
func (mc *MetricsChannel[T]) ReceiveTimeout(d time.Duration) (T, error) {
	start := time.Now()
	value, err := mc.ch.ReceiveTimeout(d)
	mc.recordReceive(start, true, err)
	return value, err
}

// TryReceive attempts a non-blocking receive, recording the outcome.
func (mc *MetricsChannel[T]) TryReceive() (T, bool, error) {
	start := time.Now()
	value, ok, err := mc.ch.TryReceive()
	mc.recordReceive(start, ok, err)
	return value, ok, err
}

// Close closes the underlying channel and flags it in the closed gauge.
func (mc *MetricsChannel[T]) Close() {
	mc.ch.Close()
	mc.updateMetrics()
}

// IsClosed returns true if the channel is closed.
func (mc *MetricsChannel[T]) IsClosed() bool {
	return mc.ch.IsClosed()
}

// IsEmpty returns true if no items are buffered.
func (mc *MetricsChannel[T]) IsEmpty() bool {
	return mc.ch.IsEmpty()
}

// IsFull returns true if every slot is occupied.
func (mc *MetricsChannel[T]) IsFull() bool {
	return mc.ch.IsFull()
}

// Len returns the number of buffered items.
func (mc *MetricsChannel[T]) Len() int {
	n := mc.ch.Len()

	if registry := mc.activeRegistry(); registry != nil {
		registry.ChannelBufferUsage.WithLabelValues(mc.name).Set(float64(n))
	}

	return n
}

// Cap returns the buffer capacity.
func (mc *MetricsChannel[T]) Cap() int {
	return mc.ch.Cap()
}

// Stats returns the underlying channel statistics.
func (mc *MetricsChannel[T]) Stats() Stats {
	return mc.ch.Stats()
}

// EnableMetrics enables metrics collection.
func (mc *MetricsChannel[T]) EnableMetrics(config metrics.Config) error {
	mc.registry.Store(metrics.RegistryFor(config))
	mc.enabled.Store(config.Enabled)

	mc.updateMetrics()
	return nil
}

// DisableMetrics disables metrics collection.
func (mc *MetricsChannel[T]) DisableMetrics() {
	mc.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mc *MetricsChannel[T]) MetricsEnabled() bool {
	return mc.enabled.Load()
}

// activeRegistry returns the registry to record into, or nil when disabled.
func (mc *MetricsChannel[T]) activeRegistry() *metrics.Registry {
	if !mc.enabled.Load() {
		return nil
	}
	return mc.registry.Load()
}

// updateMetrics updates the current state gauges.
func (mc *MetricsChannel[T]) updateMetrics() {
	registry := mc.activeRegistry()
	if registry == nil {
		return
	}

	registry.ChannelBufferSize.WithLabelValues(mc.name).Set(float64(mc.ch.Cap()))
	registry.ChannelBufferUsage.WithLabelValues(mc.name).Set(float64(mc.ch.Len()))

	closed := 0.0
	if mc.ch.IsClosed() {
		closed = 1
	}
	registry.ChannelClosed.WithLabelValues(mc.name).Set(closed)
}

func (mc *MetricsChannel[T]) observeWait(op string) {
	if registry := mc.activeRegistry(); registry != nil {
		registry.BackpressureEvents.WithLabelValues(op, mc.name).Inc()
	}
}

func (mc *MetricsChannel[T]) recordSend(start time.Time, err error) {
	registry := mc.activeRegistry()
	if registry == nil {
		return
	}

	registry.ChannelWaitTime.WithLabelValues(opSend, mc.name).Observe(time.Since(start).Seconds())
	if err != nil {
		registry.ChannelRejected.WithLabelValues(opSend, reason(err), mc.name).Inc()
	} else {
		registry.ChannelSends.WithLabelValues(mc.name).Inc()
	}
	registry.ChannelBufferUsage.WithLabelValues(mc.name).Set(float64(mc.ch.Len()))
}

// recordReceive records a receive; ok is false for an empty TryReceive.
func (mc *MetricsChannel[T]) recordReceive(start time.Time, ok bool, err error) {
	registry := mc.activeRegistry()
	if registry == nil {
		return
	}

	registry.ChannelWaitTime.WithLabelValues(opReceive, mc.name).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		registry.ChannelRejected.WithLabelValues(opReceive, reason(err), mc.name).Inc()
	case ok:
		registry.ChannelReceives.WithLabelValues(mc.name).Inc()
	}
	registry.ChannelBufferUsage.WithLabelValues(mc.name).Set(float64(mc.ch.Len()))
}

// reason maps an operation error to the "reason" label value.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, ErrFull):
		return "full"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
