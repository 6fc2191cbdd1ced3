// Command chanload pushes sequence numbers through a bounded channel from
// several producers to several consumers and checks that every accepted item
// arrives exactly once.
//
//	chanload --producers 8 --consumers 2 --items 1000000 --capacity 16
//
// Settings may also come from a config file (--config) or CHANLOAD_*
// environment variables. With --metrics-addr the channel and monitor metrics
// are served at /metrics for the duration of the run.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cfg, err := loadConfig(args)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "chanload: %v\n", err)
		return exitUsage
	}

	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	reg := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
	}

	report, err := runLoad(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("load run failed")
		// An interrupted run still has to deliver what it accepted.
		if verr := report.Verify(); verr != nil {
			logger.Error().Err(verr).Msg("partial run lost items")
		} else {
			logger.Warn().
				Int64("accepted", report.Accepted).
				Int64("received", report.Received).
				Msg("partial run verified")
		}
		return exitFailed
	}
	if err := report.Verify(); err != nil {
		logger.Error().Err(err).Msg("load run failed")
		return exitFailed
	}

	logger.Info().
		Int64("items", report.Received).
		Float64("itemsPerSecond", float64(report.Received)/report.Duration.Seconds()).
		Msg("verified")
	return exitOK
}

func serveMetrics(addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}
