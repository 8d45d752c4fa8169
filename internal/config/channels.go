package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"notify-hub/internal/domain/entity"
	loadcfg "notify-hub/internal/pkg/config"
)

// ChannelRate is a client-side rate limit applied before a channel send.
type ChannelRate struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// ChannelsConfig represents the channel-defaults configuration file. It tunes
// the delivery adapters; per-user credentials live in the database, not here.
type ChannelsConfig struct {
	Channels struct {
		// Enabled lists the channels the worker registers adapters for.
		Enabled []string `yaml:"enabled"`
		// SendTimeout bounds one channel send, e.g. "30s".
		SendTimeout string `yaml:"send_timeout"`

		Webhook struct {
			Rate ChannelRate `yaml:"rate"`
		} `yaml:"webhook"`
		Lark struct {
			Rate ChannelRate `yaml:"rate"`
		} `yaml:"lark"`
		Telegram struct {
			APIBase string      `yaml:"api_base"`
			Rate    ChannelRate `yaml:"rate"`
		} `yaml:"telegram"`
		Slack struct {
			Rate ChannelRate `yaml:"rate"`
		} `yaml:"slack"`
	} `yaml:"channels"`

	Maintenance struct {
		// IdempotencyPurgeSchedule is a standard 5-field cron expression.
		IdempotencyPurgeSchedule string `yaml:"idempotency_purge_schedule"`
	} `yaml:"maintenance"`
}

// DefaultChannelsConfig returns the configuration used when no file is given:
// all channels enabled, platform-documented rate limits, hourly key purge.
func DefaultChannelsConfig() *ChannelsConfig {
	var c ChannelsConfig
	for _, kind := range entity.KnownChannelKinds {
		c.Channels.Enabled = append(c.Channels.Enabled, kind.String())
	}
	c.Channels.SendTimeout = "30s"
	c.Channels.Webhook.Rate = ChannelRate{PerSecond: 5, Burst: 10}
	c.Channels.Lark.Rate = ChannelRate{PerSecond: 5, Burst: 5}
	c.Channels.Telegram.Rate = ChannelRate{PerSecond: 1, Burst: 3}
	c.Channels.Slack.Rate = ChannelRate{PerSecond: 1, Burst: 1}
	c.Maintenance.IdempotencyPurgeSchedule = "0 * * * *"
	return &c
}

// LoadChannelsConfig loads channel defaults from a YAML file. An empty path
// returns DefaultChannelsConfig.
// The path parameter is expected to come from a trusted source (command-line
// argument or hardcoded default).
func LoadChannelsConfig(path string) (*ChannelsConfig, error) {
	if path == "" {
		return DefaultChannelsConfig(), nil
	}

	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultChannelsConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateChannelsConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validateChannelsConfig validates the loaded configuration.
func validateChannelsConfig(config *ChannelsConfig) error {
	if len(config.Channels.Enabled) == 0 {
		return fmt.Errorf("at least one channel must be enabled")
	}
	for _, name := range config.Channels.Enabled {
		if _, err := entity.ParseChannelKind(name); err != nil {
			return fmt.Errorf("enabled channels: %w", err)
		}
	}

	timeout, err := time.ParseDuration(config.Channels.SendTimeout)
	if err != nil {
		return fmt.Errorf("send_timeout: %w", err)
	}
	if err := loadcfg.ValidatePositiveDuration(timeout); err != nil {
		return fmt.Errorf("send_timeout: %w", err)
	}

	for _, r := range []struct {
		name string
		rate ChannelRate
	}{
		{"webhook", config.Channels.Webhook.Rate},
		{"lark", config.Channels.Lark.Rate},
		{"telegram", config.Channels.Telegram.Rate},
		{"slack", config.Channels.Slack.Rate},
	} {
		if r.rate.PerSecond <= 0 {
			return fmt.Errorf("%s rate per_second must be positive", r.name)
		}
		if r.rate.Burst <= 0 {
			return fmt.Errorf("%s rate burst must be positive", r.name)
		}
	}

	if _, err := cron.ParseStandard(config.Maintenance.IdempotencyPurgeSchedule); err != nil {
		return fmt.Errorf("idempotency_purge_schedule: %w", err)
	}

	return nil
}

// EnabledChannels returns the parsed set of channels the worker should serve.
func (c *ChannelsConfig) EnabledChannels() []entity.ChannelKind {
	kinds := make([]entity.ChannelKind, 0, len(c.Channels.Enabled))
	for _, name := range c.Channels.Enabled {
		kind, err := entity.ParseChannelKind(name)
		if err != nil {
			continue
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

// SendTimeout returns the per-send timeout.
func (c *ChannelsConfig) SendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Channels.SendTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// RateFor returns the client-side rate limit for a channel.
func (c *ChannelsConfig) RateFor(kind entity.ChannelKind) ChannelRate {
	switch kind {
	case entity.ChannelWebhook:
		return c.Channels.Webhook.Rate
	case entity.ChannelLark:
		return c.Channels.Lark.Rate
	case entity.ChannelTelegram:
		return c.Channels.Telegram.Rate
	case entity.ChannelSlack:
		return c.Channels.Slack.Rate
	}
	return ChannelRate{PerSecond: 1, Burst: 1}
}

// TelegramAPIBase returns the Telegram Bot API base URL override, or empty
// when the platform default should be used.
func (c *ChannelsConfig) TelegramAPIBase() string {
	return c.Channels.Telegram.APIBase
}

// IdempotencyPurgeSchedule returns the cron expression for expired
// idempotency-key deletion.
func (c *ChannelsConfig) IdempotencyPurgeSchedule() string {
	return c.Maintenance.IdempotencyPurgeSchedule
}
