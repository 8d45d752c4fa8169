package repository

import (
	"context"

	"notify-hub/internal/domain/entity"
)

// ConfigRepository is the read contract against the external configuration
// store. The pipeline never writes channel configs or templates; writes
// happen in the configuration subsystem, which signals the cache via
// Invalidate.
type ConfigRepository interface {
	// GetUserChannelConfig returns the config for (userID, kind), or
	// (nil, nil) when no row exists.
	GetUserChannelConfig(ctx context.Context, userID string, kind entity.ChannelKind) (*entity.UserChannelConfig, error)

	// GetTemplate returns the template with all its content variants, or
	// (nil, nil) when the key is unknown.
	GetTemplate(ctx context.Context, key string) (*entity.Template, error)
}
