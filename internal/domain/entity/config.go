package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserChannelConfig binds a user to the credentials of one delivery channel.
// The Settings blob is channel-specific JSON; use the typed accessors below
// to decode it. Unique per (UserID, Channel). Owned by the configuration
// subsystem; the pipeline reads it and never writes it.
type UserChannelConfig struct {
	ID        int64
	UserID    string
	Channel   ChannelKind
	Settings  json.RawMessage
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookSettings configures the generic webhook channel.
type WebhookSettings struct {
	URL     string            `json:"url"`
	Secret  string            `json:"secret,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// LarkSettings configures the Lark (Feishu) bot webhook channel.
type LarkSettings struct {
	WebhookURL string `json:"webhook_url"`
	Secret     string `json:"secret,omitempty"`
}

// TelegramSettings configures the Telegram Bot API channel.
type TelegramSettings struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// SlackSettings configures the Slack incoming-webhook channel.
type SlackSettings struct {
	WebhookURL string `json:"webhook_url"`
}

// WebhookSettings decodes the settings blob as webhook configuration.
func (c *UserChannelConfig) WebhookSettings() (*WebhookSettings, error) {
	var s WebhookSettings
	if err := json.Unmarshal(c.Settings, &s); err != nil {
		return nil, fmt.Errorf("decode webhook settings: %w", err)
	}
	if s.URL == "" {
		return nil, &ValidationError{Field: "settings.url", Message: "must not be empty"}
	}
	return &s, nil
}

// LarkSettings decodes the settings blob as Lark configuration.
func (c *UserChannelConfig) LarkSettings() (*LarkSettings, error) {
	var s LarkSettings
	if err := json.Unmarshal(c.Settings, &s); err != nil {
		return nil, fmt.Errorf("decode lark settings: %w", err)
	}
	if s.WebhookURL == "" {
		return nil, &ValidationError{Field: "settings.webhook_url", Message: "must not be empty"}
	}
	return &s, nil
}

// TelegramSettings decodes the settings blob as Telegram configuration.
func (c *UserChannelConfig) TelegramSettings() (*TelegramSettings, error) {
	var s TelegramSettings
	if err := json.Unmarshal(c.Settings, &s); err != nil {
		return nil, fmt.Errorf("decode telegram settings: %w", err)
	}
	if s.BotToken == "" || s.ChatID == "" {
		return nil, &ValidationError{Field: "settings", Message: "bot_token and chat_id are required"}
	}
	return &s, nil
}

// SlackSettings decodes the settings blob as Slack configuration.
func (c *UserChannelConfig) SlackSettings() (*SlackSettings, error) {
	var s SlackSettings
	if err := json.Unmarshal(c.Settings, &s); err != nil {
		return nil, fmt.Errorf("decode slack settings: %w", err)
	}
	if s.WebhookURL == "" {
		return nil, &ValidationError{Field: "settings.webhook_url", Message: "must not be empty"}
	}
	return &s, nil
}
