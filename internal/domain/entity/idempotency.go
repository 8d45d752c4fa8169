package entity

import "time"

// IdempotencyTTL is the window within which a (key, user) pair dedupes
// delivery requests. After it elapses the key becomes reusable.
const IdempotencyTTL = 24 * time.Hour

// IdempotencyRecord is the persisted claim for one (IdempotencyKey, UserID)
// pair. Created once per unique key; the recorded outcomes are returned
// verbatim to every later caller inside the TTL window, regardless of the
// later request's parameters (first-write-wins).
type IdempotencyRecord struct {
	ID        int64
	Key       string
	UserID    string
	Outcomes  []DeliveryOutcome
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record's TTL has elapsed at the given instant.
// An expired record is treated as absent by the guard.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
