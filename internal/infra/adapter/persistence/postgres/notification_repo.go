package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/repository"
)

type NotificationRepo struct{ db Querier }

func NewNotificationRepo(db Querier) repository.NotificationRepository {
	return &NotificationRepo{db: db}
}

func (repo *NotificationRepo) Insert(ctx context.Context, record *entity.NotificationRecord) (int64, error) {
	const query = `
INSERT INTO notification_logs
       (message_id, user_id, channel, template_key, subject, content, status, retry_count, last_error, created_at, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`
	var id int64
	err := repo.db.QueryRowContext(ctx, query,
		record.MessageID, record.UserID, record.Channel.String(),
		nullableString(record.TemplateKey), record.Subject, record.Content,
		string(record.Status), record.RetryCount, record.LastError,
		record.CreatedAt, record.SentAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}
	return id, nil
}

func (repo *NotificationRepo) Get(ctx context.Context, id int64) (*entity.NotificationRecord, error) {
	const query = `
SELECT id, message_id, user_id, channel, template_key, subject, content, status, retry_count, last_error, created_at, sent_at
FROM notification_logs
WHERE id = $1
LIMIT 1`
	var rec entity.NotificationRecord
	var channel, status string
	var templateKey sql.NullString
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.MessageID, &rec.UserID, &channel, &templateKey,
		&rec.Subject, &rec.Content, &status, &rec.RetryCount, &rec.LastError,
		&rec.CreatedAt, &rec.SentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	rec.Channel = entity.ChannelKind(channel)
	rec.Status = entity.DeliveryStatus(status)
	rec.TemplateKey = templateKey.String
	return &rec, nil
}

func (repo *NotificationRepo) UpdateStatus(ctx context.Context, id int64, status entity.DeliveryStatus, lastError string, retryCount int) error {
	const query = `
UPDATE notification_logs SET
       status      = $1,
       last_error  = $2,
       retry_count = $3,
       sent_at     = CASE WHEN $1 = 'sent' THEN NOW() ELSE sent_at END
WHERE id = $4`
	res, err := repo.db.ExecContext(ctx, query, string(status), lastError, retryCount, id)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("UpdateStatus: no rows affected")
	}
	return nil
}

// nullableString maps "" to NULL so optional columns stay NULL instead of
// holding empty strings.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
