package entity

import "time"

// Queue names used by the retry pipeline. They double as the `queue` column
// value in the queue transport and as metric label values.
const (
	RetryQueue      = "notification_retry"
	DeadLetterQueue = "notification_dead_letter"
)

// RetryMessage is the queue payload scheduling one further delivery attempt
// for a failed NotificationRecord. Enqueued by the dispatcher (retry_count 0)
// or the queue processor (subsequent attempts); consumed and discarded by the
// queue processor.
type RetryMessage struct {
	LogID             int64     `json:"log_id"`
	RetryCount        int       `json:"retry_count"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	ExpectedProcessAt time.Time `json:"expected_process_at"`
}

// DeadLetterMessage is the terminal queue payload for a delivery whose retry
// budget is exhausted. The dead-letter consumer records it for operator
// inspection; it is never retried.
type DeadLetterMessage struct {
	LogID         int64     `json:"log_id"`
	MessageID     string    `json:"message_id"`
	Channel       ChannelKind `json:"channel"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}
