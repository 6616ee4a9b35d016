package interfaces

import (
	"context"
	"time"
)

// Queue is a persistent at-least-once message queue. Payloads are JSON;
// consumers must tolerate redelivery.
type Queue interface {
	// Enqueue publishes an immediately visible message.
	Enqueue(ctx context.Context, body []byte) error

	// EnqueueWithDelay publishes a message that becomes visible after
	// the given delay. Used for cooperative backpressure re-enqueues.
	EnqueueWithDelay(ctx context.Context, body []byte, delay time.Duration) error

	// Receive pulls the next visible message. Returns ErrNoMessage when
	// the queue is empty. The returned ack function deletes the message;
	// an unacked message becomes visible again after the visibility
	// timeout (prefer duplicates to loss).
	Receive(ctx context.Context) (body []byte, ack func() error, err error)

	// Len reports the number of stored messages, visible or not.
	Len(ctx context.Context) (int, error)
}

// QueueConsumer is implemented by the validation worker and the result
// sink; the worker pool drives it.
type QueueConsumer interface {
	// Handle processes one message body. A nil return acknowledges the
	// message; an error leaves it for redelivery.
	Handle(ctx context.Context, body []byte) error
}
