// Package metrics provides Prometheus instrumentation for chanflow components.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Bounded channels (sends, receives, rejections, backpressure waits, buffer usage)
//   - Worker pools (submitted, completed, failed tasks, active workers, queue depth)
//   - The periodic monitor (sampled length and utilization per source)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	// Bounded channel with metrics
//	ch := channel.NewWithMetrics[Job](128, "jobs")
//
//	// Worker pool with metrics
//	pool := workerpool.NewWithMetrics(5, 100, "task_pool")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	ch := channel.NewWithConfigAndMetrics[Job](
//		channel.Config{Capacity: 64},
//		"jobs",
//		metrics.Config{Enabled: true, Registry: registry},
//	)
//
// # Available Metrics
//
// ## Channel Metrics
//
//   - chanflow_channel_sends_total: Items accepted
//   - chanflow_channel_receives_total: Items delivered
//   - chanflow_channel_rejected_total: Failed operations by op and reason
//     (closed, full, timeout, canceled)
//   - chanflow_backpressure_events_total: Calls that had to wait
//   - chanflow_channel_wait_duration_seconds: Time spent in send/receive
//   - chanflow_channel_buffer_size: Capacity
//   - chanflow_channel_buffer_usage: Items currently buffered
//   - chanflow_channel_closed: 1 once closed
//
// ## Worker Pool Metrics
//
//   - chanflow_workerpool_tasks_submitted_total
//   - chanflow_workerpool_tasks_completed_total
//   - chanflow_workerpool_tasks_failed_total
//   - chanflow_workerpool_task_duration_seconds
//   - chanflow_workerpool_size, chanflow_workerpool_active_workers,
//     chanflow_workerpool_queued_tasks
//
// ## Monitor Metrics
//
//   - chanflow_monitor_length, chanflow_monitor_utilization_ratio,
//     chanflow_monitor_samples_total
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	ch.DisableMetrics()            // Stop collecting metrics
//	ch.EnableMetrics(config)       // Re-enable with new config
//	enabled := ch.MetricsEnabled() // Check current state
//
// Metrics are updated only when operations occur; nothing in this package
// starts goroutines or timers.
package metrics
