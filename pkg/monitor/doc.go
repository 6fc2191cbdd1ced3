/*
Package monitor samples queue lengths on a cron schedule and publishes them as
log events and Prometheus gauges.

	logger := zerolog.New(os.Stderr)
	m, err := monitor.New(monitor.Config{
		Schedule: "@every 5s",
		Metrics:  metrics.DefaultConfig(),
		Logger:   &logger,
	})
	if err != nil {
		return err
	}
	m.Add("jobs", jobs)                                // a channel.Channel
	m.Add("workers", monitor.LenFunc(pool.QueueSize)) // anything with a length

	m.Start()
	defer func() { <-m.Stop().Done() }()

Sources with a Cap method also report utilization, and sources with an
IsClosed method report whether they are closed. Sampling happens outside the
sampled components, which keep no timers of their own.
*/
package monitor
