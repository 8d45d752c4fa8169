package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notify-hub/internal/domain/entity"
)

func writeConfig(t *testing.T, dir, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "channels.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadChannelsConfig(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
		validate    func(*testing.T, *ChannelsConfig)
	}{
		{
			name: "valid config",
			configYAML: `channels:
  enabled:
    - webhook
    - telegram
  send_timeout: "15s"
  webhook:
    rate:
      per_second: 10
      burst: 20
  telegram:
    api_base: "https://tg.example.com"
    rate:
      per_second: 2
      burst: 4
maintenance:
  idempotency_purge_schedule: "*/30 * * * *"
`,
			validate: func(t *testing.T, c *ChannelsConfig) {
				kinds := c.EnabledChannels()
				if len(kinds) != 2 || kinds[0] != entity.ChannelWebhook || kinds[1] != entity.ChannelTelegram {
					t.Errorf("enabled = %v", kinds)
				}
				if c.SendTimeout() != 15*time.Second {
					t.Errorf("send timeout = %v", c.SendTimeout())
				}
				if r := c.RateFor(entity.ChannelWebhook); r.PerSecond != 10 || r.Burst != 20 {
					t.Errorf("webhook rate = %+v", r)
				}
				// Unmentioned channels keep their defaults.
				if r := c.RateFor(entity.ChannelSlack); r.PerSecond != 1 || r.Burst != 1 {
					t.Errorf("slack rate = %+v", r)
				}
				if c.TelegramAPIBase() != "https://tg.example.com" {
					t.Errorf("telegram api base = %q", c.TelegramAPIBase())
				}
				if c.IdempotencyPurgeSchedule() != "*/30 * * * *" {
					t.Errorf("purge schedule = %q", c.IdempotencyPurgeSchedule())
				}
			},
		},
		{
			name: "unknown channel rejected",
			configYAML: `channels:
  enabled:
    - pigeon
`,
			expectError: true,
			errorMsg:    "unknown channel kind",
		},
		{
			name: "bad send timeout rejected",
			configYAML: `channels:
  send_timeout: "soon"
`,
			expectError: true,
			errorMsg:    "send_timeout",
		},
		{
			name: "non-positive send timeout rejected",
			configYAML: `channels:
  send_timeout: "-5s"
`,
			expectError: true,
			errorMsg:    "send_timeout",
		},
		{
			name: "zero rate rejected",
			configYAML: `channels:
  lark:
    rate:
      per_second: 0
      burst: 5
`,
			expectError: true,
			errorMsg:    "lark rate per_second",
		},
		{
			name: "bad cron expression rejected",
			configYAML: `maintenance:
  idempotency_purge_schedule: "every hour"
`,
			expectError: true,
			errorMsg:    "idempotency_purge_schedule",
		},
		{
			name:        "malformed yaml rejected",
			configYAML:  "channels: [",
			expectError: true,
			errorMsg:    "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tmpDir, tt.configYAML)
			config, err := LoadChannelsConfig(path)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("error = %v, want substring %q", err, tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadChannelsConfig: %v", err)
			}
			tt.validate(t, config)
		})
	}
}

func TestLoadChannelsConfig_EmptyPathUsesDefaults(t *testing.T) {
	config, err := LoadChannelsConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if len(config.EnabledChannels()) != len(entity.KnownChannelKinds) {
		t.Errorf("default enabled = %v", config.EnabledChannels())
	}
	if config.SendTimeout() != 30*time.Second {
		t.Errorf("default send timeout = %v", config.SendTimeout())
	}
	if err := validateChannelsConfig(config); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadChannelsConfig_MissingFile(t *testing.T) {
	if _, err := LoadChannelsConfig("/nonexistent/channels.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
