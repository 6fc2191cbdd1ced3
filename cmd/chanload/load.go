package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/chanflow/pkg/metrics"
	"github.com/vnykmshr/chanflow/pkg/monitor"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
)

// channelName labels the load channel in metrics and samples.
const channelName = "load"

// ErrVerification is returned when the received items do not match the
// accepted ones.
var ErrVerification = errors.New("verification failed")

// Report summarizes one load run.
type Report struct {
	Accepted    int64
	AcceptedSum int64
	Received    int64
	ReceivedSum int64
	Duplicates  int64
	Duration    time.Duration
	Stats       channel.Stats
}

// Verify checks that every accepted item was received exactly once.
func (r Report) Verify() error {
	if r.Duplicates > 0 {
		return fmt.Errorf("%w: %d duplicate items", ErrVerification, r.Duplicates)
	}
	if r.Received != r.Accepted || r.ReceivedSum != r.AcceptedSum {
		return fmt.Errorf("%w: accepted %d items (sum %d), received %d (sum %d)",
			ErrVerification, r.Accepted, r.AcceptedSum, r.Received, r.ReceivedSum)
	}
	return nil
}

// runLoad sends cfg.Items sequence numbers through a bounded channel from
// cfg.Producers goroutines to cfg.Consumers goroutines. The channel is closed
// once, after every producer has returned. Canceling ctx stops the producers
// early; consumers still drain whatever was accepted.
func runLoad(ctx context.Context, cfg Config, reg prometheus.Registerer, logger zerolog.Logger) (Report, error) {
	metricsConfig := metrics.Config{Enabled: reg != nil, Registry: reg}

	ch, err := channel.NewWithConfigAndMetricsSafe[int](channel.Config{Capacity: cfg.Capacity}, channelName, metricsConfig)
	if err != nil {
		return Report{}, err
	}

	mon, err := monitor.New(monitor.Config{
		Schedule: cfg.SampleSpec,
		Metrics:  metricsConfig,
		Logger:   &logger,
	})
	if err != nil {
		return Report{}, err
	}
	if err := mon.Add(channelName, ch); err != nil {
		return Report{}, err
	}
	mon.Start()
	defer func() { <-mon.Stop().Done() }()

	var (
		accepted, acceptedSum atomic.Int64
		received, receivedSum atomic.Int64
		duplicates            atomic.Int64
	)
	seen := make([]atomic.Bool, cfg.Items)

	start := time.Now()
	logger.Info().
		Int("producers", cfg.Producers).
		Int("consumers", cfg.Consumers).
		Int("items", cfg.Items).
		Int("capacity", cfg.Capacity).
		Msg("load started")

	consumers := new(errgroup.Group)
	for c := 0; c < cfg.Consumers; c++ {
		consumers.Go(func() error {
			return channel.Range(context.Background(), ch, func(v int) error {
				if seen[v].Swap(true) {
					duplicates.Add(1)
				}
				received.Add(1)
				receivedSum.Add(int64(v))
				if cfg.ConsumerDelay > 0 {
					time.Sleep(cfg.ConsumerDelay)
				}
				return nil
			})
		})
	}

	producers, pctx := errgroup.WithContext(ctx)
	for p := 0; p < cfg.Producers; p++ {
		from, to := share(cfg.Items, cfg.Producers, p)
		producers.Go(func() error {
			for v := from; v < to; v++ {
				if err := ch.SendContext(pctx, v); err != nil {
					return err
				}
				accepted.Add(1)
				acceptedSum.Add(int64(v))
			}
			return nil
		})
	}

	// Coordinator: close exactly once, after all producers are done.
	produceErr := producers.Wait()
	ch.Close()
	consumeErr := consumers.Wait()

	report := Report{
		Accepted:    accepted.Load(),
		AcceptedSum: acceptedSum.Load(),
		Received:    received.Load(),
		ReceivedSum: receivedSum.Load(),
		Duplicates:  duplicates.Load(),
		Duration:    time.Since(start),
		Stats:       ch.Stats(),
	}
	mon.SampleNow()

	logger.Info().
		Int64("accepted", report.Accepted).
		Int64("received", report.Received).
		Int64("blockedSends", report.Stats.BlockedSends).
		Int64("blockedReceives", report.Stats.BlockedReceives).
		Dur("duration", report.Duration).
		Msg("load finished")

	if produceErr != nil {
		return report, fmt.Errorf("producers stopped early: %w", produceErr)
	}
	if consumeErr != nil {
		return report, fmt.Errorf("consumers failed: %w", consumeErr)
	}
	return report, nil
}

// share returns the half-open range of items assigned to producer p of n.
func share(items, n, p int) (from, to int) {
	per := items / n
	from = p * per
	to = from + per
	if p == n-1 {
		to = items
	}
	return from, to
}
