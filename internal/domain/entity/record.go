package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the lifecycle state of one (request, channel) delivery.
type DeliveryStatus string

const (
	// StatusPending is the initial state before the first send attempt completes.
	StatusPending DeliveryStatus = "pending"
	// StatusSent is the terminal success state.
	StatusSent DeliveryStatus = "sent"
	// StatusFailed is the terminal failure state: a non-retryable error, or
	// a retryable one whose retry budget is exhausted.
	StatusFailed DeliveryStatus = "failed"
	// StatusRetrying marks a retryable failure waiting in the retry queue.
	StatusRetrying DeliveryStatus = "retrying"
)

// IsTerminal reports whether no further state transitions are expected.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

// NotificationRecord is the persisted log row for one (request, channel)
// delivery. Created by the dispatcher; status transitions are applied by the
// dispatcher (initial write) and the queue processor (retry attempts).
// Records are never deleted by the pipeline.
type NotificationRecord struct {
	ID          int64
	MessageID   string
	UserID      string
	Channel     ChannelKind
	TemplateKey string // empty for custom-content requests
	Subject     string
	Content     string
	Status      DeliveryStatus
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	SentAt      *time.Time
}

// DeliveryOutcome is the per-channel result returned by Dispatch. Failures
// are values here, never propagated errors, so one bad channel cannot mask
// its siblings.
type DeliveryOutcome struct {
	Channel   ChannelKind    `json:"channel"`
	Status    DeliveryStatus `json:"status"`
	MessageID string         `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// NewMessageID derives a globally unique message identifier from the request
// timestamp and target channel. The uuid suffix disambiguates requests that
// hit the same channel within the same millisecond.
func NewMessageID(at time.Time, kind ChannelKind) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%d-%s-%s", at.UnixMilli(), kind, suffix)
}
