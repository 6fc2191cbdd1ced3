// Package metrics provides Prometheus instrumentation for chanflow components.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metric instances for chanflow components.
type Registry struct {
	// Bounded channel metrics
	ChannelSends       *prometheus.CounterVec
	ChannelReceives    *prometheus.CounterVec
	ChannelRejected    *prometheus.CounterVec
	BackpressureEvents *prometheus.CounterVec
	ChannelWaitTime    *prometheus.HistogramVec
	ChannelBufferSize  *prometheus.GaugeVec
	ChannelBufferUsage *prometheus.GaugeVec
	ChannelClosed      *prometheus.GaugeVec

	// Worker pool metrics
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolActive      *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec

	// Monitor metrics
	SampledLength      *prometheus.GaugeVec
	SampledUtilization *prometheus.GaugeVec
	Samples            *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by chanflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// RegistryFor returns the registry a component should record into for
// config: DefaultRegistry when config sets no registerer, namespace or
// labels, and a registry built by NewRegistryWithConfig otherwise.
func RegistryFor(config Config) *Registry {
	if config.Registry == nil && (config.Namespace == "" || config.Namespace == DefaultNamespace) && len(config.Labels) == 0 {
		return DefaultRegistry
	}
	return NewRegistryWithConfig(config)
}

// NewRegistryWithConfig creates a registry honoring the namespace and constant
// labels from config. A nil config.Registry means prometheus.DefaultRegisterer.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	labels := config.Labels

	return &Registry{
		ChannelSends: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "sends_total",
				Help:        "Total number of items accepted by bounded channels",
				ConstLabels: labels,
			},
			[]string{"channel_name"},
		)),

		ChannelReceives: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "receives_total",
				Help:        "Total number of items delivered by bounded channels",
				ConstLabels: labels,
			},
			[]string{"channel_name"},
		)),

		ChannelRejected: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "rejected_total",
				Help:        "Total number of operations that returned an error, by reason",
				ConstLabels: labels,
			},
			[]string{"op", "reason", "channel_name"},
		)),

		BackpressureEvents: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "backpressure",
				Name:        "events_total",
				Help:        "Total number of operations that had to wait on a full or empty buffer",
				ConstLabels: labels,
			},
			[]string{"op", "channel_name"},
		)),

		ChannelWaitTime: mustRegister(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "wait_duration_seconds",
				Help:        "Time spent inside send and receive calls",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"op", "channel_name"},
		)),

		ChannelBufferSize: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "buffer_size",
				Help:        "Bounded channel capacity",
				ConstLabels: labels,
			},
			[]string{"channel_name"},
		)),

		ChannelBufferUsage: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "buffer_usage",
				Help:        "Items currently buffered in a bounded channel",
				ConstLabels: labels,
			},
			[]string{"channel_name"},
		)),

		ChannelClosed: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "channel",
				Name:        "closed",
				Help:        "1 once the channel has been closed, 0 before",
				ConstLabels: labels,
			},
			[]string{"channel_name"},
		)),

		TasksSubmitted: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_submitted_total",
				Help:        "Total number of tasks accepted by the pool queue",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		TasksCompleted: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_completed_total",
				Help:        "Total number of tasks completed successfully",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		TasksFailed: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "tasks_failed_total",
				Help:        "Total number of tasks that returned an error or panicked",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		TaskExecutionDuration: mustRegister(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "task_duration_seconds",
				Help:        "Time spent executing tasks",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		WorkerPoolSize: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "size",
				Help:        "Current worker pool size",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		WorkerPoolActive: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "active_workers",
				Help:        "Number of active workers",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		WorkerPoolQueued: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "workerpool",
				Name:        "queued_tasks",
				Help:        "Number of queued tasks",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		)),

		SampledLength: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "monitor",
				Name:        "length",
				Help:        "Last sampled number of buffered items per source",
				ConstLabels: labels,
			},
			[]string{"source"},
		)),

		SampledUtilization: mustRegister(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "monitor",
				Name:        "utilization_ratio",
				Help:        "Last sampled length/capacity per bounded source",
				ConstLabels: labels,
			},
			[]string{"source"},
		)),

		Samples: mustRegister(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "monitor",
				Name:        "samples_total",
				Help:        "Total number of samples taken per source",
				ConstLabels: labels,
			},
			[]string{"source"},
		)),
	}
}

// mustRegister registers c with reg. If an identical collector is already
// registered, the existing one is returned so several components can share
// one registerer. Any other registration error panics, as promauto does.
func mustRegister[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
