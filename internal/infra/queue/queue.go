// Package queue provides the delayed-delivery message queue used by the
// retry scheduler and the dead-letter consumer. Messages become visible to
// consumers only after their delay elapses, which is how scheduled retries
// wait out their backoff.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrMessageGone indicates an ack or nack targeted a message that no longer
// exists, usually because another consumer already acked it.
var ErrMessageGone = errors.New("queue: message gone")

// Message is a single queued payload leased to a consumer.
type Message struct {
	ID       int64
	Queue    string
	Payload  []byte
	Attempts int
}

// Queue is the transport between the dispatcher and the background
// processors.
//
// Receive leases up to max visible messages. A leased message is invisible
// to other consumers for the visibility timeout; it must be Acked (removed)
// or Nacked (made visible again after a delay) before the lease expires, or
// it will be redelivered.
type Queue interface {
	Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) error
	Receive(ctx context.Context, queue string, max int) ([]Message, error)
	Ack(ctx context.Context, id int64) error
	Nack(ctx context.Context, id int64, delay time.Duration) error
}
