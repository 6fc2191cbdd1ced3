package monitor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	gferrors "github.com/vnykmshr/chanflow/pkg/common/errors"
	"github.com/vnykmshr/chanflow/pkg/common/validation"
	"github.com/vnykmshr/chanflow/pkg/metrics"
)

// DefaultSchedule samples every ten seconds.
const DefaultSchedule = "@every 10s"

// Observable is anything with a length worth sampling. A source that also
// has Cap() int reports utilization; one with IsClosed() bool reports its
// closed state.
type Observable interface {
	Len() int
}

// LenFunc adapts a function to Observable, e.g. a worker pool's QueueSize.
type LenFunc func() int

// Len implements Observable.
func (f LenFunc) Len() int { return f() }

type capacity interface {
	Cap() int
}

type closable interface {
	IsClosed() bool
}

// Sample is one observation of a source.
type Sample struct {
	Source string
	Len    int

	// Cap and Utilization are zero for sources without a capacity.
	Cap         int
	Utilization float64

	Closed bool
	Time   time.Time
}

// Config holds configuration for a Monitor.
type Config struct {
	// Schedule is a cron spec, with optional seconds field, or a descriptor
	// such as "@every 5s". Empty means DefaultSchedule.
	Schedule string

	// Metrics selects the registry the sampled gauges are written to.
	// Disabled means samples are only logged.
	Metrics metrics.Config

	// Logger receives one event per sampled source. Nil means zerolog.Nop().
	Logger *zerolog.Logger
}

// Monitor periodically samples registered sources. It runs on its own
// goroutine and never holds a source's lock beyond a single Len call.
type Monitor struct {
	mu      sync.Mutex
	sources map[string]Observable
	last    map[string]Sample

	cron     *cron.Cron
	schedule cron.Schedule
	registry *metrics.Registry
	logger   zerolog.Logger
}

var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a stopped Monitor. It returns a ValidationError if the schedule
// does not parse.
func New(config Config) (*Monitor, error) {
	spec := config.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, gferrors.NewValidationError("monitor", "schedule", spec, err.Error()).
			WithHint(`use a cron expression or a descriptor like "@every 10s"`)
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	logger = logger.With().Str("component", "monitor").Logger()

	m := &Monitor{
		sources:  make(map[string]Observable),
		last:     make(map[string]Sample),
		schedule: schedule,
		logger:   logger,
	}
	if config.Metrics.Enabled {
		m.registry = metrics.NewRegistryWithConfig(config.Metrics)
	}

	m.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
	)
	m.cron.Schedule(schedule, cron.FuncJob(func() { m.SampleNow() }))

	return m, nil
}

// Add registers a source under name. Names must be unique.
func (m *Monitor) Add(name string, source Observable) error {
	if err := validation.ValidateNotEmpty("monitor", "name", name); err != nil {
		return err
	}
	if source == nil {
		return validation.ValidateNotNil("monitor", "source", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[name]; exists {
		return gferrors.NewValidationError("monitor", "name", name, "already registered")
	}
	m.sources[name] = source
	return nil
}

// Remove unregisters a source. Its last sample is forgotten.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sources, name)
	delete(m.last, name)
}

// SampleNow samples every source once, records and logs the results, and
// returns them ordered by source name.
func (m *Monitor) SampleNow() []Sample {
	m.mu.Lock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sources := make(map[string]Observable, len(m.sources))
	for name, src := range m.sources {
		sources[name] = src
	}
	m.mu.Unlock()

	sort.Strings(names)

	now := time.Now()
	samples := make([]Sample, 0, len(names))
	for _, name := range names {
		s := observe(name, sources[name], now)
		m.record(s)
		samples = append(samples, s)
	}

	m.mu.Lock()
	for _, s := range samples {
		if _, still := m.sources[s.Source]; still {
			m.last[s.Source] = s
		}
	}
	m.mu.Unlock()

	return samples
}

// Last returns the most recent sample of name.
func (m *Monitor) Last(name string) (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.last[name]
	return s, ok
}

// Next returns the next scheduled sampling time after t.
func (m *Monitor) Next(t time.Time) time.Time {
	return m.schedule.Next(t)
}

// Start begins sampling on the configured schedule. It does not sample
// immediately; call SampleNow for that.
func (m *Monitor) Start() {
	m.logger.Debug().Int("sources", m.sourceCount()).Msg("monitor started")
	m.cron.Start()
}

// Stop halts sampling. The returned context is done once an in-flight
// sample, if any, has finished.
func (m *Monitor) Stop() context.Context {
	ctx := m.cron.Stop()
	m.logger.Debug().Msg("monitor stopped")
	return ctx
}

func (m *Monitor) sourceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

func observe(name string, src Observable, now time.Time) Sample {
	s := Sample{Source: name, Len: src.Len(), Time: now}
	if c, ok := src.(capacity); ok {
		s.Cap = c.Cap()
		if s.Cap > 0 {
			s.Utilization = float64(s.Len) / float64(s.Cap)
		}
	}
	if c, ok := src.(closable); ok {
		s.Closed = c.IsClosed()
	}
	return s
}

func (m *Monitor) record(s Sample) {
	event := m.logger.Info().
		Str("source", s.Source).
		Int("len", s.Len)
	if s.Cap > 0 {
		event = event.Int("cap", s.Cap).Float64("utilization", s.Utilization)
	}
	event.Bool("closed", s.Closed).Msg("sample")

	if m.registry == nil {
		return
	}
	m.registry.SampledLength.WithLabelValues(s.Source).Set(float64(s.Len))
	if s.Cap > 0 {
		m.registry.SampledUtilization.WithLabelValues(s.Source).Set(s.Utilization)
	}
	m.registry.Samples.WithLabelValues(s.Source).Inc()
}

// cronLogger adapts zerolog.Logger to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(fmt.Sprintf("cron: %s", msg))
}
