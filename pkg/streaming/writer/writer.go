package writer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	gferrors "github.com/vnykmshr/chanflow/pkg/common/errors"
	"github.com/vnykmshr/chanflow/pkg/common/validation"
	"github.com/vnykmshr/chanflow/pkg/metrics"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
)

// ErrWriterClosed is returned when writing to or flushing a closed writer.
// It matches channel.ErrClosed.
var ErrWriterClosed = fmt.Errorf("writer is closed: %w", channel.ErrClosed)

// ErrBufferFull is returned by a non-blocking writer whose queue is full.
// It matches channel.ErrFull.
var ErrBufferFull = fmt.Errorf("writer queue is full: %w", channel.ErrFull)

// AsyncWriter queues writes on a bounded channel and writes them to an
// underlying io.Writer from a single background goroutine, in the order they
// were accepted.
type AsyncWriter interface {
	// Write queues a copy of data. With BlockOnFull it waits for queue
	// space; otherwise it returns ErrBufferFull when the queue is full.
	Write(data []byte) error

	// WriteString queues s.
	WriteString(s string) error

	// WriteContext is Write bounded by ctx while waiting for queue space.
	WriteContext(ctx context.Context, data []byte) error

	// Flush waits until every write accepted before it has been written to
	// the underlying writer, and returns the flush error if any.
	Flush(ctx context.Context) error

	// Close stops accepting writes, writes everything already queued and
	// returns the error of that final flush. Later calls return nil.
	Close() error

	// Stats returns a snapshot of the writer's counters.
	Stats() Stats

	// IsClosed reports whether Close has been called.
	IsClosed() bool

	// Len returns the number of queued requests not yet taken by the
	// background goroutine.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// BufferSize returns the number of bytes batched but not yet flushed.
	BufferSize() int

	// BufferCapacity returns the batch size that triggers a flush.
	BufferCapacity() int
}

// Stats holds statistics about async writer performance.
type Stats struct {
	// BytesWritten is the number of bytes written to the underlying writer.
	BytesWritten int64

	// WriteCount is the number of accepted writes.
	WriteCount int64

	// FlushCount is the number of batches handed to the underlying writer.
	FlushCount int64

	// ErrorCount is the number of failed flushes.
	ErrorCount int64

	// BufferOverflows is the number of writes rejected with ErrBufferFull.
	BufferOverflows int64

	// AverageWriteTime is TotalWriteTime divided by FlushCount.
	AverageWriteTime time.Duration

	// TotalWriteTime is the time spent in the underlying writer, retries
	// included.
	TotalWriteTime time.Duration

	// LastWriteTime is when the last write was accepted.
	LastWriteTime time.Time

	// BufferUtilization is the batched bytes over BufferSize (0.0 to 1.0).
	BufferUtilization float64
}

// Config holds configuration options for AsyncWriter.
type Config struct {
	// QueueSize is the number of writes that may wait for the background
	// goroutine. Default: 64
	QueueSize int

	// BufferSize is the batch size in bytes; reaching it triggers a flush.
	// Default: 64KB
	BufferSize int

	// FlushInterval is how often to flush the batch automatically.
	// Set to 0 to disable automatic flushing.
	// Default: 1 second
	FlushInterval time.Duration

	// BlockOnFull determines behavior when the queue is full.
	// If true, Write waits until a slot frees up.
	// If false, Write returns ErrBufferFull immediately.
	// Default: true
	BlockOnFull bool

	// MaxRetries is the number of times to retry a failed flush.
	// Default: 3
	MaxRetries int

	// RetryDelay is the delay between retries.
	// Default: 100ms
	RetryDelay time.Duration

	// Name labels the queue in metrics.
	Name string

	// Metrics instruments the queue when Metrics.Enabled is set.
	Metrics metrics.Config

	// Logger receives flush failures.
	Logger *zerolog.Logger

	// OnError is called when a flush fails after all retries.
	OnError func(error)

	// OnFlush is called after each flush operation.
	OnFlush func(bytesWritten int, duration time.Duration)

	// OnBufferFull is called when a non-blocking write is rejected.
	OnBufferFull func()
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:     64,
		BufferSize:    64 * 1024,
		FlushInterval: time.Second,
		BlockOnFull:   true,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
		Name:          "writer",
	}
}

// Validate reports the first invalid field of c.
func (c Config) Validate() error {
	if err := validation.ValidatePositive("writer", "queueSize", c.QueueSize); err != nil {
		return err
	}
	if err := validation.ValidatePositive("writer", "bufferSize", c.BufferSize); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("writer", "flushInterval", c.FlushInterval); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("writer", "maxRetries", c.MaxRetries); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("writer", "retryDelay", c.RetryDelay)
}

// request is one queue entry: data to batch, or a flush marker. reply is set
// for flushes requested through Flush and is buffered so the loop never
// waits on it.
type request struct {
	data  []byte
	flush bool
	reply chan error
}

type asyncWriter struct {
	underlying io.Writer
	config     Config
	logger     zerolog.Logger

	queue channel.Channel[request]

	// mu guards buffer and stats. Only the loop goroutine appends to or
	// resets buffer.
	mu     sync.Mutex
	buffer []byte
	stats  Stats

	closed   atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	ticker   sync.WaitGroup
	closeErr error
}

// New creates a new AsyncWriter with default configuration.
func New(w io.Writer) AsyncWriter {
	return NewWithConfig(w, DefaultConfig())
}

// NewWithConfig creates a new AsyncWriter with the specified configuration.
// It panics on an invalid configuration.
func NewWithConfig(w io.Writer, config Config) AsyncWriter {
	aw, err := NewWithConfigSafe(w, config)
	if err != nil {
		panic("invalid writer configuration: " + err.Error())
	}
	return aw
}

// NewWithConfigSafe creates a new AsyncWriter, returning an error instead of
// panicking when w is nil or config is invalid.
func NewWithConfigSafe(w io.Writer, config Config) (AsyncWriter, error) {
	if w == nil {
		return nil, validation.ValidateNotNil("writer", "underlying", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	queue, err := channel.NewWithConfigAndMetricsSafe[request](
		channel.Config{Capacity: config.QueueSize}, config.Name, config.Metrics)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	aw := &asyncWriter{
		underlying: w,
		config:     config,
		logger:     logger.With().Str("component", "writer").Str("name", config.Name).Logger(),
		queue:      queue,
		buffer:     make([]byte, 0, config.BufferSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go aw.loop()

	if config.FlushInterval > 0 {
		aw.ticker.Add(1)
		go aw.flushLoop()
	}

	return aw, nil
}

// Write implements AsyncWriter.Write.
func (aw *asyncWriter) Write(data []byte) error {
	return aw.WriteContext(context.Background(), data)
}

// WriteString implements AsyncWriter.WriteString.
func (aw *asyncWriter) WriteString(s string) error {
	return aw.WriteContext(context.Background(), []byte(s))
}

// WriteContext implements AsyncWriter.WriteContext.
func (aw *asyncWriter) WriteContext(ctx context.Context, data []byte) error {
	if aw.IsClosed() {
		return ErrWriterClosed
	}
	if len(data) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := request{data: make([]byte, len(data))}
	copy(req.data, data)

	var err error
	if aw.config.BlockOnFull {
		err = aw.queue.SendContext(ctx, req)
	} else {
		err = aw.queue.TrySend(req)
	}

	switch {
	case err == nil:
		aw.updateStats(func(s *Stats) {
			s.WriteCount++
			s.LastWriteTime = time.Now()
		})
		return nil
	case errors.Is(err, channel.ErrFull):
		aw.updateStats(func(s *Stats) {
			s.BufferOverflows++
		})
		if aw.config.OnBufferFull != nil {
			aw.config.OnBufferFull()
		}
		return ErrBufferFull
	case errors.Is(err, channel.ErrClosed):
		return ErrWriterClosed
	default:
		return err
	}
}

// Flush implements AsyncWriter.Flush.
func (aw *asyncWriter) Flush(ctx context.Context) error {
	if aw.IsClosed() {
		return ErrWriterClosed
	}

	reply := make(chan error, 1)
	if err := aw.queue.SendContext(ctx, request{flush: true, reply: reply}); err != nil {
		if errors.Is(err, channel.ErrClosed) {
			return ErrWriterClosed
		}
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements AsyncWriter.Close.
func (aw *asyncWriter) Close() error {
	if !aw.closed.CompareAndSwap(false, true) {
		<-aw.done
		return nil
	}

	close(aw.stop)
	aw.ticker.Wait()

	aw.queue.Close()
	<-aw.done

	return aw.closeErr
}

// Stats implements AsyncWriter.Stats.
func (aw *asyncWriter) Stats() Stats {
	aw.mu.Lock()
	defer aw.mu.Unlock()

	stats := aw.stats
	stats.BufferUtilization = float64(len(aw.buffer)) / float64(aw.config.BufferSize)
	if stats.FlushCount > 0 {
		stats.AverageWriteTime = time.Duration(int64(stats.TotalWriteTime) / stats.FlushCount)
	}
	return stats
}

// IsClosed implements AsyncWriter.IsClosed.
func (aw *asyncWriter) IsClosed() bool {
	return aw.closed.Load()
}

// Len implements AsyncWriter.Len.
func (aw *asyncWriter) Len() int {
	return aw.queue.Len()
}

// Cap implements AsyncWriter.Cap.
func (aw *asyncWriter) Cap() int {
	return aw.queue.Cap()
}

// BufferSize implements AsyncWriter.BufferSize.
func (aw *asyncWriter) BufferSize() int {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	return len(aw.buffer)
}

// BufferCapacity implements AsyncWriter.BufferCapacity.
func (aw *asyncWriter) BufferCapacity() int {
	return aw.config.BufferSize
}

// loop is the only consumer of the queue. It runs until Close has closed the
// queue and every queued request has been handled, then flushes what is
// left.
func (aw *asyncWriter) loop() {
	defer close(aw.done)

	// Range only returns nil here: the context never ends and the callback
	// never fails.
	_ = channel.Range(context.Background(), aw.queue, func(req request) error {
		if req.flush {
			err := aw.flushBuffer()
			if req.reply != nil {
				req.reply <- err
			}
			return nil
		}
		aw.appendData(req.data)
		return nil
	})

	aw.closeErr = aw.flushBuffer()
}

// flushLoop queues a flush marker every FlushInterval. A full queue skips the
// tick; the batch is flushed by size or by a later tick instead.
func (aw *asyncWriter) flushLoop() {
	defer aw.ticker.Done()

	ticker := time.NewTicker(aw.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = aw.queue.TrySend(request{flush: true})
		case <-aw.stop:
			return
		}
	}
}

// appendData adds data to the batch, flushing first when it would not fit
// and again once the batch reaches BufferSize. A failed flush drops its
// batch; the failure is reported through OnError and the logger.
func (aw *asyncWriter) appendData(data []byte) {
	aw.mu.Lock()
	overflow := len(aw.buffer) > 0 && len(aw.buffer)+len(data) > aw.config.BufferSize
	aw.mu.Unlock()

	if overflow {
		_ = aw.flushBuffer()
	}

	aw.mu.Lock()
	aw.buffer = append(aw.buffer, data...)
	full := len(aw.buffer) >= aw.config.BufferSize
	aw.mu.Unlock()

	if full {
		_ = aw.flushBuffer()
	}
}

// flushBuffer writes the batch to the underlying writer.
func (aw *asyncWriter) flushBuffer() error {
	aw.mu.Lock()
	if len(aw.buffer) == 0 {
		aw.mu.Unlock()
		return nil
	}
	data := make([]byte, len(aw.buffer))
	copy(data, aw.buffer)
	aw.buffer = aw.buffer[:0]
	aw.mu.Unlock()

	startTime := time.Now()
	bytesWritten, err := aw.writeWithRetries(data)
	duration := time.Since(startTime)

	aw.updateStats(func(s *Stats) {
		s.FlushCount++
		s.BytesWritten += int64(bytesWritten)
		s.TotalWriteTime += duration
		if err != nil {
			s.ErrorCount++
		}
	})

	if aw.config.OnFlush != nil {
		aw.config.OnFlush(bytesWritten, duration)
	}

	if err != nil {
		err = gferrors.NewOperationError("writer", "flush", err).
			WithContext(fmt.Sprintf("%d of %d bytes written", bytesWritten, len(data)))
		aw.logger.Warn().Err(err).Int("bytes", len(data)).Msg("flush failed")
		if aw.config.OnError != nil {
			aw.config.OnError(err)
		}
	}

	return err
}

// writeWithRetries writes data, retrying the unwritten remainder up to
// MaxRetries times.
func (aw *asyncWriter) writeWithRetries(data []byte) (int, error) {
	var totalWritten int
	var lastErr error

	for attempt := 0; attempt <= aw.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(aw.config.RetryDelay)
		}

		written, err := aw.underlying.Write(data[totalWritten:])
		totalWritten += written

		if err != nil {
			lastErr = err
			continue
		}

		if totalWritten >= len(data) {
			return totalWritten, nil
		}
		lastErr = io.ErrShortWrite
	}

	return totalWritten, lastErr
}

// updateStats safely updates statistics.
func (aw *asyncWriter) updateStats(updater func(*Stats)) {
	aw.mu.Lock()
	defer aw.mu.Unlock()
	updater(&aw.stats)
}
