// Package cache provides the key-value cache transport used by the
// configuration read-through cache. Keys follow the
// `{resource}:{id}:{sub_type}` convention, e.g. "user_config:user123:lark".
package cache

import (
	"context"
	"strings"
	"time"
)

// Store is a generic TTL key-value cache. Implementations must be safe for
// concurrent use. A Get miss is reported via the second return value, never
// via an error; errors are reserved for transport failures.
type Store interface {
	// Get returns the cached value for key, or ok=false on a miss
	// (absent or expired).
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl. A ttl of zero or less means the
	// entry does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key builds a cache key from resource, id, and sub-type segments.
func Key(resource, id, subType string) string {
	return strings.Join([]string{resource, id, subType}, ":")
}
