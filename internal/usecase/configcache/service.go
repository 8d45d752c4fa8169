// Package configcache is the read-through cache in front of the external
// configuration store. The pipeline resolves every user channel config and
// template through it; the configuration subsystem signals writes via the
// Invalidate methods.
package configcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/infra/cache"
	"notify-hub/internal/repository"
)

// Cache TTLs. User configs change more often than templates, so they get
// the shorter window.
const (
	UserConfigTTL = 5 * time.Minute
	TemplateTTL   = 1 * time.Hour
)

const (
	userConfigResource = "user_config"
	templateResource   = "template"
)

// Cache serves configuration reads from the store, falling back to the
// repository on a miss. Negative lookups are not cached: a user who adds a
// channel config should not wait out a TTL before it takes effect.
type Cache struct {
	repo  repository.ConfigRepository
	store cache.Store
}

func New(repo repository.ConfigRepository, store cache.Store) *Cache {
	return &Cache{repo: repo, store: store}
}

// UserChannelConfig returns the channel config for (userID, kind), or
// (nil, nil) when none exists. Cache transport failures fall through to the
// repository; a broken cache degrades latency, not correctness.
func (c *Cache) UserChannelConfig(ctx context.Context, userID string, kind entity.ChannelKind) (*entity.UserChannelConfig, error) {
	key := cache.Key(userConfigResource, userID, kind.String())

	if data, ok := c.lookup(ctx, key); ok {
		var cfg entity.UserChannelConfig
		if err := json.Unmarshal(data, &cfg); err == nil {
			recordCacheHit(userConfigResource)
			return &cfg, nil
		}
		// Undecodable entry: drop it and reload.
		_ = c.store.Delete(ctx, key)
	}
	recordCacheMiss(userConfigResource)

	cfg, err := c.repo.GetUserChannelConfig(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("UserChannelConfig: %w", err)
	}
	if cfg == nil {
		return nil, nil
	}

	c.fill(ctx, key, cfg, UserConfigTTL)
	return cfg, nil
}

// Template returns the template with its content variants, or (nil, nil)
// for an unknown key.
func (c *Cache) Template(ctx context.Context, templateKey string) (*entity.Template, error) {
	key := cache.Key(templateResource, templateKey, "full")

	if data, ok := c.lookup(ctx, key); ok {
		var tpl entity.Template
		if err := json.Unmarshal(data, &tpl); err == nil {
			recordCacheHit(templateResource)
			return &tpl, nil
		}
		_ = c.store.Delete(ctx, key)
	}
	recordCacheMiss(templateResource)

	tpl, err := c.repo.GetTemplate(ctx, templateKey)
	if err != nil {
		return nil, fmt.Errorf("Template: %w", err)
	}
	if tpl == nil {
		return nil, nil
	}

	c.fill(ctx, key, tpl, TemplateTTL)
	return tpl, nil
}

// InvalidateUserChannelConfig drops the cached config for (userID, kind).
// Called when the configuration subsystem reports a write.
func (c *Cache) InvalidateUserChannelConfig(ctx context.Context, userID string, kind entity.ChannelKind) error {
	return c.store.Delete(ctx, cache.Key(userConfigResource, userID, kind.String()))
}

// InvalidateTemplate drops the cached template for templateKey.
func (c *Cache) InvalidateTemplate(ctx context.Context, templateKey string) error {
	return c.store.Delete(ctx, cache.Key(templateResource, templateKey, "full"))
}

// WarmTemplates preloads the given template keys so the first dispatch after
// startup does not pay the repository round trip. Unknown keys are skipped.
func (c *Cache) WarmTemplates(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if _, err := c.Template(ctx, key); err != nil {
			return fmt.Errorf("WarmTemplates: %q: %w", key, err)
		}
	}
	slog.Info("template cache warmed", slog.Int("templates", len(keys)))
	return nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed, falling back to repository",
			slog.String("key", key),
			slog.Any("error", err))
		return nil, false
	}
	return data, ok
}

func (c *Cache) fill(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache fill skipped, marshal failed",
			slog.String("key", key),
			slog.Any("error", err))
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		slog.Warn("cache set failed",
			slog.String("key", key),
			slog.Any("error", err))
	}
}
