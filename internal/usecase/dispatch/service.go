// Package dispatch implements the delivery pipeline's entry point: request
// validation, idempotency gating, template rendering, and the per-channel
// fan-out that hands rendered content to the protocol adapters.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/infra/channel"
	"notify-hub/internal/infra/queue"
	"notify-hub/internal/observability/tracing"
	"notify-hub/internal/repository"
	"notify-hub/internal/resilience/circuitbreaker"
	"notify-hub/internal/resilience/retry"
)

// firstRetryDelay is the backoff before the first retry attempt. Used unless
// the channel supplied an explicit rate-limit hint.
const firstRetryDelay = 10 * time.Second

// ConfigSource resolves user channel configs and templates, normally through
// the read-through cache.
type ConfigSource interface {
	UserChannelConfig(ctx context.Context, userID string, kind entity.ChannelKind) (*entity.UserChannelConfig, error)
	Template(ctx context.Context, key string) (*entity.Template, error)
}

// Guard is the idempotency gate. See usecase/idempotency.
type Guard interface {
	ClaimOrFetch(ctx context.Context, key, userID string) ([]entity.DeliveryOutcome, bool, error)
	RegisterOutcomes(ctx context.Context, key, userID string, outcomes []entity.DeliveryOutcome) error
}

// Service coordinates one delivery request across its target channels.
//
// Channel failures never propagate as errors from Dispatch: each channel's
// result is a DeliveryOutcome value, so a failing channel cannot mask its
// siblings. Dispatch itself errors only on whole-request problems
// (validation, idempotency storage failure).
type Service struct {
	configs  ConfigSource
	guard    Guard
	records  repository.NotificationRepository
	queue    queue.Queue
	adapters channel.Registry
	breakers map[entity.ChannelKind]*circuitbreaker.CircuitBreaker

	sendTimeout time.Duration
	now         func() time.Time
}

// NewService builds the dispatcher. Every registered adapter gets its own
// circuit breaker so one degraded channel service trips only its own circuit.
func NewService(configs ConfigSource, guard Guard, records repository.NotificationRepository, q queue.Queue, adapters channel.Registry) *Service {
	breakers := make(map[entity.ChannelKind]*circuitbreaker.CircuitBreaker, len(adapters))
	for kind := range adapters {
		breakers[kind] = circuitbreaker.New(circuitbreaker.ChannelConfig(kind.String()))
	}
	return &Service{
		configs:     configs,
		guard:       guard,
		records:     records,
		queue:       q,
		adapters:    adapters,
		breakers:    breakers,
		sendTimeout: channel.SendTimeout,
		now:         time.Now,
	}
}

// Dispatch delivers one request to all its target channels and returns one
// outcome per channel, in request order.
func (s *Service) Dispatch(ctx context.Context, req *entity.DeliveryRequest) ([]entity.DeliveryOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("Dispatch: %w", err)
	}

	ctx, span := tracing.GetTracer().Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.Int("channels", len(req.Channels)),
	)

	if req.IdempotencyKey != "" {
		outcomes, proceed, err := s.guard.ClaimOrFetch(ctx, req.IdempotencyKey, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("Dispatch: %w", err)
		}
		if !proceed {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return outcomes, nil
		}
	}

	tpl, tplErr := s.resolveTemplate(ctx, req)

	slog.Info("dispatching delivery request",
		slog.String("user_id", req.UserID),
		slog.Int("channels", len(req.Channels)),
		slog.String("template_key", req.TemplateKey),
		slog.Bool("idempotent", req.IdempotencyKey != ""))

	outcomes := make([]entity.DeliveryOutcome, len(req.Channels))
	if tplErr != nil {
		// A missing template is a configuration failure of every requested
		// channel, not a whole-request error: each channel gets a terminal
		// outcome, and an existing claim records them like any other result.
		for i, kind := range req.Channels {
			outcomes[i] = entity.DeliveryOutcome{
				Channel: kind,
				Status:  entity.StatusFailed,
				Error:   tplErr.Error(),
			}
		}
		slog.Warn("template resolution failed, all channels terminal",
			slog.String("template_key", req.TemplateKey),
			slog.Any("error", tplErr))
	} else {
		// Fan out one task per channel. Tasks report failures as outcome
		// values, never as errors, so every channel always gets an outcome.
		g, gctx := errgroup.WithContext(ctx)
		for i, kind := range req.Channels {
			g.Go(func() error {
				outcomes[i] = s.deliverChannel(gctx, req, tpl, kind)
				return nil
			})
		}
		_ = g.Wait()
	}

	if req.IdempotencyKey != "" {
		// Best effort: a failed registration means a later duplicate may
		// observe empty outcomes, not that this dispatch failed.
		if err := s.guard.RegisterOutcomes(ctx, req.IdempotencyKey, req.UserID, outcomes); err != nil {
			slog.Warn("failed to register idempotency outcomes",
				slog.String("idempotency_key", req.IdempotencyKey),
				slog.Any("error", err))
		}
	}

	return outcomes, nil
}

// deliverChannel runs the full pipeline for a single channel: config
// resolution, rendering, record creation, send, and status transition.
func (s *Service) deliverChannel(ctx context.Context, req *entity.DeliveryRequest, tpl *entity.Template, kind entity.ChannelKind) (out entity.DeliveryOutcome) {
	out = entity.DeliveryOutcome{Channel: kind, Status: entity.StatusFailed}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in channel delivery",
				slog.String("channel", kind.String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			out.Status = entity.StatusFailed
			out.Error = fmt.Sprintf("panic: %v", r)
			out.Retryable = false
		}
	}()

	RecordDispatch(kind.String())

	cfg, err := s.configs.UserChannelConfig(ctx, req.UserID, kind)
	if err != nil {
		// Terminal: no record exists yet, so nothing downstream could pick
		// this attempt up again. The outcome must not promise a retry.
		out.Error = fmt.Sprintf("resolve channel config: %v", err)
		return out
	}
	if cfg == nil || !cfg.Active {
		out.Error = ErrChannelNotConfigured.Error()
		return out
	}

	msg, err := s.resolveContent(req, tpl, kind)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	now := s.now().UTC()
	rec := &entity.NotificationRecord{
		MessageID:   entity.NewMessageID(now, kind),
		UserID:      req.UserID,
		Channel:     kind,
		TemplateKey: req.TemplateKey,
		Subject:     msg.Subject,
		Content:     msg.Body,
		Status:      entity.StatusPending,
		CreatedAt:   now,
	}
	var logID int64
	err = retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		id, insertErr := s.records.Insert(ctx, rec)
		if insertErr == nil {
			logID = id
		}
		return insertErr
	})
	if err != nil {
		out.Error = fmt.Sprintf("persist notification record: %v", err)
		out.Retryable = true
		return out
	}
	out.MessageID = rec.MessageID

	start := s.now()
	_, sendErr := s.Send(ctx, kind, cfg, msg)
	duration := s.now().Sub(start)

	if sendErr == nil {
		RecordSuccess(kind.String(), duration)
		s.transition(ctx, logID, entity.StatusSent, "", 0)
		slog.Info("delivery sent",
			slog.String("channel", kind.String()),
			slog.String("message_id", rec.MessageID),
			slog.Duration("send_duration", duration))
		out.Status = entity.StatusSent
		return out
	}

	RecordFailure(kind.String(), duration)
	out.Error = sendErr.Error()

	if !channel.Retryable(sendErr) {
		s.transition(ctx, logID, entity.StatusFailed, sendErr.Error(), 0)
		slog.Warn("delivery failed, not retryable",
			slog.String("channel", kind.String()),
			slog.String("message_id", rec.MessageID),
			slog.Any("error", sendErr))
		return out
	}

	// Retryable failure: hand the record to the retry scheduler. The first
	// backoff honors a rate-limit hint when the service supplied one.
	delay := firstRetryDelay
	if rle, ok := channel.AsRateLimit(sendErr); ok {
		RecordRateLimitHit(kind.String())
		if rle.RetryAfter > 0 {
			delay = rle.RetryAfter
		}
	}

	if err := s.scheduleRetry(ctx, logID, 0, delay); err != nil {
		// Unschedulable retries degrade to a terminal failure rather than
		// silently losing track of the record.
		s.transition(ctx, logID, entity.StatusFailed, sendErr.Error(), 0)
		slog.Error("failed to schedule retry, marking failed",
			slog.String("channel", kind.String()),
			slog.Int64("log_id", logID),
			slog.Any("error", err))
		return out
	}

	s.transition(ctx, logID, entity.StatusRetrying, sendErr.Error(), 0)
	RecordRetryScheduled(kind.String())
	slog.Warn("delivery failed, retry scheduled",
		slog.String("channel", kind.String()),
		slog.String("message_id", rec.MessageID),
		slog.Duration("delay", delay),
		slog.Any("error", sendErr))
	out.Status = entity.StatusRetrying
	out.Retryable = true
	return out
}

// Send performs a single bounded send through the channel's circuit breaker.
// Exported so the queue processor reuses the same protection on retries.
func (s *Service) Send(ctx context.Context, kind entity.ChannelKind, cfg *entity.UserChannelConfig, msg *channel.Message) (string, error) {
	adapter, err := s.adapters.Lookup(kind)
	if err != nil {
		return "", &channel.ClientError{StatusCode: 0, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	ctx, span := tracing.GetTracer().Start(ctx, "send."+kind.String())
	defer span.End()

	result, err := s.breakers[kind].Execute(func() (interface{}, error) {
		return adapter.Send(ctx, cfg, msg)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			RecordCircuitOpen(kind.String())
		}
		return "", err
	}
	ref, _ := result.(string)
	return ref, nil
}

// resolveTemplate looks up the request's template. Custom-content requests
// resolve to (nil, nil); an unknown key or a failing template store resolves
// to an error that Dispatch spreads over every requested channel.
func (s *Service) resolveTemplate(ctx context.Context, req *entity.DeliveryRequest) (*entity.Template, error) {
	if !req.UsesTemplate() {
		return nil, nil
	}
	tpl, err := s.configs.Template(ctx, req.TemplateKey)
	if err != nil {
		return nil, fmt.Errorf("resolve template %q: %w", req.TemplateKey, err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %q: %w", req.TemplateKey, ErrTemplateNotFound)
	}
	return tpl, nil
}

// resolveContent builds the adapter message from either the template variant
// for the channel or the caller-supplied custom content.
func (s *Service) resolveContent(req *entity.DeliveryRequest, tpl *entity.Template, kind entity.ChannelKind) (*channel.Message, error) {
	if tpl == nil {
		return &channel.Message{
			Subject:     req.CustomContent.Subject,
			Body:        req.CustomContent.Content,
			ContentType: entity.ContentTypeText,
		}, nil
	}

	variant := tpl.VariantFor(kind)
	if variant == nil {
		return nil, fmt.Errorf("template %q: %w: %s", tpl.Key, ErrVariantMissing, kind)
	}
	return &channel.Message{
		Subject:     RenderFor(variant.ContentType, variant.Subject, req.Variables),
		Body:        RenderFor(variant.ContentType, variant.Body, req.Variables),
		ContentType: variant.ContentType,
	}, nil
}

// scheduleRetry enqueues the next attempt for logID after delay.
func (s *Service) scheduleRetry(ctx context.Context, logID int64, retryCount int, delay time.Duration) error {
	now := s.now().UTC()
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
		return s.queue.Enqueue(ctx, entity.RetryQueue, payload, delay)
	})
}

// transition applies a status update, logging rather than failing when the
// write does not land; the outcome already reflects the real send result.
func (s *Service) transition(ctx context.Context, logID int64, status entity.DeliveryStatus, lastError string, retryCount int) {
	err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		return s.records.UpdateStatus(ctx, logID, status, lastError, retryCount)
	})
	if err != nil {
		slog.Error("failed to update notification status",
			slog.Int64("log_id", logID),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}
}
