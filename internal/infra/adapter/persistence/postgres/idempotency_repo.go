package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/repository"
)

type IdempotencyRepo struct{ db Querier }

func NewIdempotencyRepo(db Querier) repository.IdempotencyRepository {
	return &IdempotencyRepo{db: db}
}

// TryClaim relies on the unique index on (idempotency_key, user_id): the
// insert succeeds for exactly one concurrent caller. An existing row whose
// TTL elapsed is taken over in the same statement, which keeps the
// expired-key-reusable rule atomic as well.
func (repo *IdempotencyRepo) TryClaim(ctx context.Context, key, userID string, ttl time.Duration) (bool, *entity.IdempotencyRecord, error) {
	now := time.Now().UTC()
	const claim = `
INSERT INTO idempotency_keys (idempotency_key, user_id, outcomes, created_at, expires_at)
VALUES ($1, $2, NULL, $3, $4)
ON CONFLICT (idempotency_key, user_id) DO UPDATE
SET outcomes = NULL, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
WHERE idempotency_keys.expires_at <= EXCLUDED.created_at
RETURNING id`
	var id int64
	err := repo.db.QueryRowContext(ctx, claim, key, userID, now, now.Add(ttl)).Scan(&id)
	if err == nil {
		return true, nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, nil, fmt.Errorf("TryClaim: %w", err)
	}

	// Conflict with an unexpired claim: return the winner's record.
	existing, err := repo.get(ctx, key, userID)
	if err != nil {
		return false, nil, fmt.Errorf("TryClaim: %w", err)
	}
	if existing == nil {
		// The winning row vanished between the two statements (expired and
		// purged). Treat as a lost race; the caller may retry.
		return false, nil, fmt.Errorf("TryClaim: %w", entity.ErrNotFound)
	}
	return false, existing, nil
}

func (repo *IdempotencyRepo) SaveOutcomes(ctx context.Context, key, userID string, outcomes []entity.DeliveryOutcome) error {
	payload, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("SaveOutcomes: marshal outcomes: %w", err)
	}

	const query = `
UPDATE idempotency_keys SET outcomes = $1
WHERE idempotency_key = $2 AND user_id = $3`
	res, err := repo.db.ExecContext(ctx, query, payload, key, userID)
	if err != nil {
		return fmt.Errorf("SaveOutcomes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SaveOutcomes: no rows affected")
	}
	return nil
}

func (repo *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM idempotency_keys WHERE expires_at <= $1`
	res, err := repo.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteExpired: %w", err)
	}
	return n, nil
}

func (repo *IdempotencyRepo) get(ctx context.Context, key, userID string) (*entity.IdempotencyRecord, error) {
	const query = `
SELECT id, idempotency_key, user_id, outcomes, created_at, expires_at
FROM idempotency_keys
WHERE idempotency_key = $1 AND user_id = $2
LIMIT 1`
	var rec entity.IdempotencyRecord
	var outcomesJSON []byte
	err := repo.db.QueryRowContext(ctx, query, key, userID).Scan(
		&rec.ID, &rec.Key, &rec.UserID, &outcomesJSON, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(outcomesJSON) > 0 {
		if err := json.Unmarshal(outcomesJSON, &rec.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes: %w", err)
		}
	}
	return &rec, nil
}
