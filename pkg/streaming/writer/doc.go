/*
Package writer batches writes to an io.Writer from a background goroutine.

Writes are queued on a bounded channel.Channel and a single goroutine drains
the queue into a byte batch, writing it to the underlying writer when it
reaches BufferSize, on every FlushInterval tick, on Flush and on Close. The
underlying writer therefore sees the data in exactly the order the writes
were accepted, and never from two goroutines at once.

	file, _ := os.Create("events.log")
	w := writer.New(file)
	defer w.Close()

	_ = w.WriteString("started\n")
	_ = w.Flush(context.Background())

# Backpressure

The queue holds QueueSize writes. When it is full a blocking writer
(BlockOnFull, the default) waits for a slot, bounded by the context passed to
WriteContext. A non-blocking writer returns ErrBufferFull instead and calls
OnBufferFull:

	w := writer.NewWithConfig(conn, writer.Config{
		QueueSize:    256,
		BufferSize:   32 * 1024,
		BlockOnFull:  false,
		OnBufferFull: func() { dropped.Add(1) },
	})

ErrBufferFull matches channel.ErrFull and ErrWriterClosed matches
channel.ErrClosed, so callers can handle a writer and a bare channel alike.

# Flushing and errors

Flush is queued behind earlier writes, so when it returns everything
accepted before it has been written. A failing underlying writer is retried
MaxRetries times, RetryDelay apart; after that the batch is dropped, counted
in Stats.ErrorCount, passed to OnError and returned from the Flush or Close
that triggered it.

Close stops accepting writes, drains the queue, flushes the remainder and
returns that flush's error. The writer satisfies monitor.Observable, so its
queue depth can be sampled alongside channels.
*/
package writer
