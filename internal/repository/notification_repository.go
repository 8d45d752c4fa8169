package repository

import (
	"context"

	"notify-hub/internal/domain/entity"
)

// NotificationRepository persists one log row per (request, channel)
// delivery. Rows are inserted by the dispatcher and transitioned by the
// queue processor; they are never deleted by the pipeline.
type NotificationRepository interface {
	// Insert stores a new record and returns its database id.
	Insert(ctx context.Context, record *entity.NotificationRecord) (int64, error)

	// Get returns the record with the given database id, or (nil, nil)
	// when it does not exist.
	Get(ctx context.Context, id int64) (*entity.NotificationRecord, error)

	// UpdateStatus transitions a record's status, recording the error text
	// and retry count of the attempt. Passing entity.StatusSent also stamps
	// sent_at.
	UpdateStatus(ctx context.Context, id int64, status entity.DeliveryStatus, lastError string, retryCount int) error
}
