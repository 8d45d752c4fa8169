package repository

import (
	"context"
	"time"

	"notify-hub/internal/domain/entity"
)

// IdempotencyRepository is the claim store backing the idempotency guard.
// TryClaim is the only operation in the pipeline that needs strict atomic
// compare-and-set semantics across concurrent callers.
type IdempotencyRepository interface {
	// TryClaim atomically claims (key, userID) for ttl. On a fresh claim it
	// returns (true, nil, nil): the caller owns the dispatch. When an
	// unexpired claim already exists it returns (false, record, nil) with
	// the previously recorded outcomes. An expired claim is replaced as if
	// absent.
	TryClaim(ctx context.Context, key, userID string, ttl time.Duration) (claimed bool, existing *entity.IdempotencyRecord, err error)

	// SaveOutcomes attaches the dispatch results to an owned claim so later
	// callers can replay them.
	SaveOutcomes(ctx context.Context, key, userID string, outcomes []entity.DeliveryOutcome) error

	// DeleteExpired purges claims whose TTL elapsed before now and returns
	// the number of rows removed. Run from the maintenance schedule.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
