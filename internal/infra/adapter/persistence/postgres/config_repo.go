package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"notify-hub/internal/domain/entity"
	"notify-hub/internal/repository"
)

type ConfigRepo struct{ db Querier }

func NewConfigRepo(db Querier) repository.ConfigRepository {
	return &ConfigRepo{db: db}
}

func (repo *ConfigRepo) GetUserChannelConfig(ctx context.Context, userID string, kind entity.ChannelKind) (*entity.UserChannelConfig, error) {
	const query = `
SELECT id, user_id, channel, settings, active, created_at, updated_at
FROM user_channel_configs
WHERE user_id = $1 AND channel = $2
LIMIT 1`
	var cfg entity.UserChannelConfig
	var channel string
	err := repo.db.QueryRowContext(ctx, query, userID, kind.String()).Scan(
		&cfg.ID, &cfg.UserID, &channel, &cfg.Settings, &cfg.Active,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetUserChannelConfig: %w", err)
	}
	cfg.Channel = entity.ChannelKind(channel)
	return &cfg, nil
}

func (repo *ConfigRepo) GetTemplate(ctx context.Context, key string) (*entity.Template, error) {
	const query = `
SELECT template_key, name, variables, created_at, updated_at
FROM templates
WHERE template_key = $1
LIMIT 1`
	var tpl entity.Template
	var variablesJSON []byte
	err := repo.db.QueryRowContext(ctx, query, key).Scan(
		&tpl.Key, &tpl.Name, &variablesJSON, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetTemplate: %w", err)
	}

	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &tpl.Variables); err != nil {
			return nil, fmt.Errorf("GetTemplate: unmarshal variables: %w", err)
		}
	}

	variants, err := repo.listVariants(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("GetTemplate: %w", err)
	}
	tpl.Variants = variants

	return &tpl, nil
}

func (repo *ConfigRepo) listVariants(ctx context.Context, key string) ([]entity.ContentVariant, error) {
	const query = `
SELECT id, template_key, channel, content_type, subject, body
FROM template_variants
WHERE template_key = $1
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	variants := make([]entity.ContentVariant, 0, len(entity.KnownChannelKinds))
	for rows.Next() {
		var v entity.ContentVariant
		var channel, contentType string
		if err := rows.Scan(&v.ID, &v.TemplateKey, &channel, &contentType, &v.Subject, &v.Body); err != nil {
			return nil, err
		}
		v.Channel = entity.ChannelKind(channel)
		v.ContentType = entity.ContentType(contentType)
		variants = append(variants, v)
	}
	return variants, rows.Err()
}
