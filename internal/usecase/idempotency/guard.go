// Package idempotency gates dispatch so concurrent duplicate requests with
// the same (key, user) pair send exactly once. The atomicity lives in the
// repository's claim statement; this package adds the pipeline semantics on
// top: proceed-or-replay, outcome registration, and expiry purging.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/repository"
)

// Guard is the idempotency gate in front of the dispatcher.
type Guard struct {
	repo repository.IdempotencyRepository
	ttl  time.Duration
}

func NewGuard(repo repository.IdempotencyRepository) *Guard {
	return &Guard{repo: repo, ttl: entity.IdempotencyTTL}
}

// ClaimOrFetch claims (key, userID) for the caller. Exactly one concurrent
// caller gets proceed=true and must dispatch; everyone else gets the
// outcomes the winner recorded (possibly still empty when the winner is
// mid-flight).
func (g *Guard) ClaimOrFetch(ctx context.Context, key, userID string) (outcomes []entity.DeliveryOutcome, proceed bool, err error) {
	claimed, existing, err := g.repo.TryClaim(ctx, key, userID, g.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("ClaimOrFetch: %w", err)
	}
	if claimed {
		return nil, true, nil
	}

	recordDuplicate()
	slog.Info("duplicate request suppressed",
		slog.String("idempotency_key", key),
		slog.String("user_id", userID))
	return existing.Outcomes, false, nil
}

// RegisterOutcomes attaches the delivery outcomes to an earlier claim so
// later duplicates can replay them.
func (g *Guard) RegisterOutcomes(ctx context.Context, key, userID string, outcomes []entity.DeliveryOutcome) error {
	if err := g.repo.SaveOutcomes(ctx, key, userID, outcomes); err != nil {
		return fmt.Errorf("RegisterOutcomes: %w", err)
	}
	return nil
}

// PurgeExpired removes claims past their TTL. Run periodically; an expired
// claim is already treated as absent by TryClaim, so purging only reclaims
// storage.
func (g *Guard) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := g.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: %w", err)
	}
	if n > 0 {
		slog.Info("expired idempotency claims purged", slog.Int64("removed", n))
	}
	return n, nil
}
