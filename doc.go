/*
Package chanflow provides bounded, closable channels and the pieces built
around them for producer/consumer applications.

Streaming (pkg/streaming):
  - channel: Bounded FIFO channel with blocking, context-aware, timed and
    non-blocking send/receive, and an idempotent Close

Task Scheduling (pkg/scheduling):
  - workerpool: Background task processing fed by a bounded queue

Containers (pkg/container):
  - deque: Unbounded double-ended queue

Observability:
  - metrics: Prometheus instrumentation shared by all components
  - monitor: Cron-scheduled occupancy sampling of channels and queues

Example usage:

	import (
		"github.com/vnykmshr/chanflow/pkg/scheduling/workerpool"
		"github.com/vnykmshr/chanflow/pkg/streaming/channel"
	)

	jobs := channel.New[string](100) // at most 100 buffered items
	pool := workerpool.New(5, 100)   // 5 workers, queue 100

	for job := range channel.All(jobs) {
		pool.Submit(handler(job))
	}

The chanload command (cmd/chanload) drives a channel with many producers and
consumers and verifies that no item is lost or duplicated.
*/
package chanflow
