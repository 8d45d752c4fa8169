package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultVisibilityTimeout is how long a received message stays leased to
// its consumer before it is redelivered.
const DefaultVisibilityTimeout = 1 * time.Minute

// PostgresQueue implements Queue on the queue_messages table. Leasing uses
// FOR UPDATE SKIP LOCKED so concurrent consumers never block each other or
// receive the same message.
type PostgresQueue struct {
	db                *sql.DB
	visibilityTimeout time.Duration
}

func NewPostgresQueue(db *sql.DB) *PostgresQueue {
	return &PostgresQueue{db: db, visibilityTimeout: DefaultVisibilityTimeout}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) error {
	const query = `
INSERT INTO queue_messages (queue, payload, visible_at, attempts, created_at)
VALUES ($1, $2, $3, 0, $4)`
	now := time.Now().UTC()
	if _, err := q.db.ExecContext(ctx, query, queue, payload, now.Add(delay), now); err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Receive(ctx context.Context, queue string, max int) ([]Message, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Receive: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
SELECT id, queue, payload, attempts
FROM queue_messages
WHERE queue = $1 AND visible_at <= $2
ORDER BY visible_at
LIMIT $3
FOR UPDATE SKIP LOCKED`
	now := time.Now().UTC()
	rows, err := tx.QueryContext(ctx, query, queue, now, max)
	if err != nil {
		return nil, fmt.Errorf("Receive: %w", err)
	}

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Queue, &m.Payload, &m.Attempts); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("Receive: scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Receive: %w", err)
	}
	_ = rows.Close()

	// Lease the selected rows: push visible_at past the visibility timeout
	// so a crashed consumer's messages come back on their own.
	const lease = `
UPDATE queue_messages SET visible_at = $1, attempts = attempts + 1
WHERE id = $2`
	leaseUntil := now.Add(q.visibilityTimeout)
	for i := range msgs {
		if _, err := tx.ExecContext(ctx, lease, leaseUntil, msgs[i].ID); err != nil {
			return nil, fmt.Errorf("Receive: lease: %w", err)
		}
		msgs[i].Attempts++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Receive: commit: %w", err)
	}
	return msgs, nil
}

// Depth returns the number of messages currently stored for the queue,
// leased or not. Used by the worker's queue depth gauge.
func (q *PostgresQueue) Depth(ctx context.Context, queue string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_messages WHERE queue = $1`, queue).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("Depth: %w", err)
	}
	return n, nil
}

func (q *PostgresQueue) Ack(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Ack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Ack: %w", ErrMessageGone)
	}
	return nil
}

func (q *PostgresQueue) Nack(ctx context.Context, id int64, delay time.Duration) error {
	const query = `UPDATE queue_messages SET visible_at = $1 WHERE id = $2`
	res, err := q.db.ExecContext(ctx, query, time.Now().UTC().Add(delay), id)
	if err != nil {
		return fmt.Errorf("Nack: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Nack: %w", ErrMessageGone)
	}
	return nil
}
