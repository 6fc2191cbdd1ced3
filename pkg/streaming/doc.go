/*
Package streaming groups components that move values between goroutines.

  - channel: Bounded FIFO channel with backpressure and an explicit close
    protocol
  - writer: Batching io.Writer front end whose queue is a channel

Basic usage:

	ch := channel.New[Event](64)

	go func() {
		defer ch.Close()
		for _, e := range events {
			if err := ch.Send(e); err != nil {
				return
			}
		}
	}()

	for e := range channel.All(ch) {
		handle(e)
	}

Senders wait while the channel is full and receivers wait while it is empty.
After Close, buffered values are still delivered and every further call
fails with channel.ErrClosed.

A writer.AsyncWriter puts the same queue in front of an io.Writer: many
goroutines write, one goroutine drains the queue and writes the batches in
order.
*/
package streaming
