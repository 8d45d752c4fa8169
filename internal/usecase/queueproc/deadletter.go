package queueproc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/infra/queue"
)

const (
	// DeadLetterBatchSize bounds how many dead-letter messages one poll leases.
	DeadLetterBatchSize = 5
	// DeadLetterPollInterval is the idle wait between dead-letter queue polls.
	DeadLetterPollInterval = 30 * time.Second
)

// DeadLetterConsumer drains the dead-letter queue. Entries are terminal: the
// consumer surfaces each one through logs and metrics for operator inspection
// and acknowledges it. Nothing is ever re-sent from here.
type DeadLetterConsumer struct {
	queue queue.Queue
}

func NewDeadLetterConsumer(q queue.Queue) *DeadLetterConsumer {
	return &DeadLetterConsumer{queue: q}
}

// Run polls the dead-letter queue until ctx is cancelled.
func (c *DeadLetterConsumer) Run(ctx context.Context) {
	slog.Info("dead-letter consumer started",
		slog.Int("batch_size", DeadLetterBatchSize),
		slog.Duration("poll_interval", DeadLetterPollInterval))

	ticker := time.NewTicker(DeadLetterPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("dead-letter consumer stopped")
			return
		case <-ticker.C:
			if _, err := c.ProcessBatch(ctx); err != nil {
				recordPollError(entity.DeadLetterQueue)
				slog.Error("dead-letter queue poll failed", slog.Any("error", err))
			}
		}
	}
}

// ProcessBatch leases and records up to DeadLetterBatchSize dead-letter
// messages, returning how many it handled.
func (c *DeadLetterConsumer) ProcessBatch(ctx context.Context) (int, error) {
	msgs, err := c.queue.Receive(ctx, entity.DeadLetterQueue, DeadLetterBatchSize)
	if err != nil {
		return 0, fmt.Errorf("ProcessBatch: %w", err)
	}

	for _, msg := range msgs {
		c.record(msg)
		if err := c.queue.Ack(ctx, msg.ID); err != nil {
			slog.Error("dead-letter ack failed",
				slog.Int64("queue_message_id", msg.ID),
				slog.Any("error", err))
		}
	}
	return len(msgs), nil
}

func (c *DeadLetterConsumer) record(msg queue.Message) {
	var dl entity.DeadLetterMessage
	if err := json.Unmarshal(msg.Payload, &dl); err != nil {
		slog.Error("undecodable dead-letter message",
			slog.Int64("queue_message_id", msg.ID),
			slog.Any("error", err))
		return
	}

	recordDeadLetterInspected(dl.Channel.String())
	slog.Error("dead-lettered delivery",
		slog.Int64("log_id", dl.LogID),
		slog.String("message_id", dl.MessageID),
		slog.String("channel", dl.Channel.String()),
		slog.Int("attempts", dl.Attempts),
		slog.String("last_error", dl.LastError),
		slog.Time("first_failed_at", dl.FirstFailedAt),
		slog.Time("last_attempt_at", dl.LastAttemptAt))
}
