// Package queueproc consumes the retry and dead-letter queues: it re-attempts
// failed deliveries on a fixed backoff schedule and parks deliveries whose
// retry budget is exhausted.
package queueproc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/infra/channel"
	"notify-hub/internal/infra/queue"
	"notify-hub/internal/repository"
	"notify-hub/internal/resilience/retry"
)

const (
	// RetryBatchSize bounds how many retry messages one poll leases.
	RetryBatchSize = 10
	// PollInterval is the idle wait between retry queue polls.
	PollInterval = 5 * time.Second
	// MaxRetries is the retry budget per delivery. A delivery gets one
	// initial attempt plus MaxRetries retries before it is dead-lettered.
	MaxRetries = 2
)

// backoffSchedule[n] is the delay before retry attempt n+1. Index 0 is
// consumed by the dispatcher's first schedule; the processor uses index 1.
var backoffSchedule = [MaxRetries]time.Duration{10 * time.Second, 30 * time.Second}

// Sender performs one protected send. Satisfied by dispatch.Service, so
// retries run through the same circuit breakers and timeout as first attempts.
type Sender interface {
	Send(ctx context.Context, kind entity.ChannelKind, cfg *entity.UserChannelConfig, msg *channel.Message) (string, error)
}

// ConfigSource resolves channel configs and templates at retry time. Configs
// are re-read on every attempt so a deactivation between attempts stops
// further sends.
type ConfigSource interface {
	UserChannelConfig(ctx context.Context, userID string, kind entity.ChannelKind) (*entity.UserChannelConfig, error)
	Template(ctx context.Context, key string) (*entity.Template, error)
}

// Processor drains the retry queue and applies the backoff schedule.
type Processor struct {
	queue   queue.Queue
	records repository.NotificationRepository
	configs ConfigSource
	sender  Sender
	now     func() time.Time
}

func NewProcessor(q queue.Queue, records repository.NotificationRepository, configs ConfigSource, sender Sender) *Processor {
	return &Processor{
		queue:   q,
		records: records,
		configs: configs,
		sender:  sender,
		now:     time.Now,
	}
}

// Run polls the retry queue until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	slog.Info("retry processor started",
		slog.Int("batch_size", RetryBatchSize),
		slog.Duration("poll_interval", PollInterval))

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retry processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				recordPollError(entity.RetryQueue)
				slog.Error("retry queue poll failed", slog.Any("error", err))
			}
		}
	}
}

// ProcessBatch leases and processes up to RetryBatchSize retry messages,
// returning how many it handled.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	msgs, err := p.queue.Receive(ctx, entity.RetryQueue, RetryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("ProcessBatch: %w", err)
	}

	for _, msg := range msgs {
		p.processOne(ctx, msg)
	}
	return len(msgs), nil
}

// processOne handles a single leased retry message. Every path ends in Ack:
// a message that cannot be acted on (bad payload, vanished record, terminal
// record) is dropped rather than redelivered forever.
func (p *Processor) processOne(ctx context.Context, msg queue.Message) {
	var rm entity.RetryMessage
	if err := json.Unmarshal(msg.Payload, &rm); err != nil {
		slog.Error("dropping undecodable retry message",
			slog.Int64("queue_message_id", msg.ID),
			slog.Any("error", err))
		recordRetryProcessed("dropped")
		p.ack(ctx, msg.ID)
		return
	}

	rec, err := p.records.Get(ctx, rm.LogID)
	if err != nil {
		// Transient read failure: put the message back for a later poll.
		slog.Warn("failed to load notification record, redelivering",
			slog.Int64("log_id", rm.LogID),
			slog.Any("error", err))
		if nackErr := p.queue.Nack(ctx, msg.ID, PollInterval); nackErr != nil {
			slog.Error("nack failed", slog.Int64("queue_message_id", msg.ID), slog.Any("error", nackErr))
		}
		return
	}
	if rec == nil {
		slog.Warn("retry message references missing record",
			slog.Int64("log_id", rm.LogID))
		recordRetryProcessed("dropped")
		p.ack(ctx, msg.ID)
		return
	}
	if rec.Status.IsTerminal() {
		// Already sent or failed through another path; nothing to do.
		recordRetryProcessed("stale")
		p.ack(ctx, msg.ID)
		return
	}

	p.attempt(ctx, msg.ID, &rm, rec)
}

// attempt performs retry number rm.RetryCount+1 for the record.
func (p *Processor) attempt(ctx context.Context, queueMessageID int64, rm *entity.RetryMessage, rec *entity.NotificationRecord) {
	cfg, err := p.configs.UserChannelConfig(ctx, rec.UserID, rec.Channel)
	if err != nil {
		slog.Warn("config lookup failed, redelivering retry",
			slog.Int64("log_id", rm.LogID),
			slog.Any("error", err))
		if nackErr := p.queue.Nack(ctx, queueMessageID, PollInterval); nackErr != nil {
			slog.Error("nack failed", slog.Int64("queue_message_id", queueMessageID), slog.Any("error", nackErr))
		}
		return
	}
	if cfg == nil || !cfg.Active {
		// Deactivated since the original dispatch. Terminal.
		p.transition(ctx, rm.LogID, entity.StatusFailed, "channel configuration removed or deactivated", rm.RetryCount)
		recordRetryProcessed("config_gone")
		slog.Warn("abandoning retry, channel no longer configured",
			slog.Int64("log_id", rm.LogID),
			slog.String("channel", rec.Channel.String()))
		p.ack(ctx, queueMessageID)
		return
	}

	_, sendErr := p.sender.Send(ctx, rec.Channel, cfg, p.message(ctx, rec))
	newCount := rm.RetryCount + 1

	if sendErr == nil {
		p.transition(ctx, rm.LogID, entity.StatusSent, "", newCount)
		recordRetryProcessed("sent")
		slog.Info("retry succeeded",
			slog.Int64("log_id", rm.LogID),
			slog.String("channel", rec.Channel.String()),
			slog.Int("retry_count", newCount))
		p.ack(ctx, queueMessageID)
		return
	}

	if !channel.Retryable(sendErr) {
		p.transition(ctx, rm.LogID, entity.StatusFailed, sendErr.Error(), newCount)
		recordRetryProcessed("failed")
		slog.Warn("retry failed, not retryable",
			slog.Int64("log_id", rm.LogID),
			slog.String("channel", rec.Channel.String()),
			slog.Any("error", sendErr))
		p.ack(ctx, queueMessageID)
		return
	}

	if newCount >= MaxRetries {
		p.deadLetter(ctx, rm, rec, sendErr, newCount)
		p.ack(ctx, queueMessageID)
		return
	}

	delay := backoffSchedule[newCount]
	if rle, ok := channel.AsRateLimit(sendErr); ok && rle.RetryAfter > 0 {
		delay = rle.RetryAfter
	}
	if err := p.scheduleNext(ctx, rm.LogID, newCount, delay); err != nil {
		// Cannot schedule the next attempt; close the record out instead of
		// stranding it in retrying.
		p.transition(ctx, rm.LogID, entity.StatusFailed, sendErr.Error(), newCount)
		recordRetryProcessed("failed")
		slog.Error("failed to schedule next retry, marking failed",
			slog.Int64("log_id", rm.LogID),
			slog.Any("error", err))
		p.ack(ctx, queueMessageID)
		return
	}

	p.transition(ctx, rm.LogID, entity.StatusRetrying, sendErr.Error(), newCount)
	recordRetryProcessed("rescheduled")
	slog.Warn("retry failed, next attempt scheduled",
		slog.Int64("log_id", rm.LogID),
		slog.String("channel", rec.Channel.String()),
		slog.Int("retry_count", newCount),
		slog.Duration("delay", delay),
		slog.Any("error", sendErr))
	p.ack(ctx, queueMessageID)
}

// deadLetter closes the record as failed and emits a dead-letter message for
// operator inspection.
func (p *Processor) deadLetter(ctx context.Context, rm *entity.RetryMessage, rec *entity.NotificationRecord, sendErr error, attempts int) {
	p.transition(ctx, rm.LogID, entity.StatusFailed, sendErr.Error(), MaxRetries)

	now := p.now().UTC()
	payload, err := json.Marshal(entity.DeadLetterMessage{
		LogID:         rm.LogID,
		MessageID:     rec.MessageID,
		Channel:       rec.Channel,
		Attempts:      attempts + 1, // initial attempt plus retries
		LastError:     sendErr.Error(),
		FirstFailedAt: rec.CreatedAt,
		LastAttemptAt: now,
	})
	if err == nil {
		err = retry.WithBackoff(ctx, retry.EnqueueConfig(), func() error {
			return p.queue.Enqueue(ctx, entity.DeadLetterQueue, payload, 0)
		})
	}
	if err != nil {
		// The record is already terminal; losing the dead-letter entry only
		// loses the operator breadcrumb.
		slog.Error("failed to emit dead-letter message",
			slog.Int64("log_id", rm.LogID),
			slog.Any("error", err))
	}

	recordRetryProcessed("dead_lettered")
	recordDeadLetter(rec.Channel.String())
	slog.Error("delivery dead-lettered, retry budget exhausted",
		slog.Int64("log_id", rm.LogID),
		slog.String("message_id", rec.MessageID),
		slog.String("channel", rec.Channel.String()),
		slog.Int("retry_count", MaxRetries),
		slog.Any("error", sendErr))
}

// message rebuilds the adapter message from the persisted record. Content was
// rendered at dispatch time; only the content type has to be re-derived so
// the adapter applies the right escaping.
func (p *Processor) message(ctx context.Context, rec *entity.NotificationRecord) *channel.Message {
	contentType := entity.ContentTypeText
	if rec.TemplateKey != "" {
		if tpl, err := p.configs.Template(ctx, rec.TemplateKey); err == nil && tpl != nil {
			if v := tpl.VariantFor(rec.Channel); v != nil {
				contentType = v.ContentType
			}
		}
	}
	return &channel.Message{
		Subject:     rec.Subject,
		Body:        rec.Content,
		ContentType: contentType,
	}
}

func (p *Processor) scheduleNext(ctx context.Context, logID int64, retryCount int, delay time.Duration) error {
	now := p.now().UTC()
	payload, err := json.Marshal(entity.RetryMessage{
		LogID:             logID,
		RetryCount:        retryCount,
		ScheduledAt:       now,
		ExpectedProcessAt: now.Add(delay),
	})
	if err != nil {
		return err
	}
	return retry.WithBackoff(ctx, retry.EnqueueConfig(), func() error {
		return p.queue.Enqueue(ctx, entity.RetryQueue, payload, delay)
	})
}

func (p *Processor) transition(ctx context.Context, logID int64, status entity.DeliveryStatus, lastError string, retryCount int) {
	err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		return p.records.UpdateStatus(ctx, logID, status, lastError, retryCount)
	})
	if err != nil {
		slog.Error("failed to update notification status",
			slog.Int64("log_id", logID),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}
}

func (p *Processor) ack(ctx context.Context, queueMessageID int64) {
	if err := p.queue.Ack(ctx, queueMessageID); err != nil {
		slog.Error("ack failed",
			slog.Int64("queue_message_id", queueMessageID),
			slog.Any("error", err))
	}
}
