package db

import (
	"database/sql"
)

// MigrateUp creates the delivery schema. Every statement is idempotent so the
// worker can run it on every start.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS user_channel_configs (
    id         SERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL,
    channel    VARCHAR(20) NOT NULL,
    settings   JSONB NOT NULL,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, channel)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS templates (
    template_key TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    variables    JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS template_variants (
    id           SERIAL PRIMARY KEY,
    template_key TEXT NOT NULL REFERENCES templates(template_key) ON DELETE CASCADE,
    channel      VARCHAR(20) NOT NULL,
    content_type VARCHAR(20) NOT NULL,
    subject      TEXT NOT NULL DEFAULT '',
    body         TEXT NOT NULL,
    UNIQUE (template_key, channel)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notification_logs (
    id           SERIAL PRIMARY KEY,
    message_id   TEXT NOT NULL UNIQUE,
    user_id      TEXT NOT NULL,
    channel      VARCHAR(20) NOT NULL,
    template_key TEXT,
    subject      TEXT NOT NULL DEFAULT '',
    content      TEXT NOT NULL,
    status       VARCHAR(20) NOT NULL,
    retry_count  INTEGER NOT NULL DEFAULT 0,
    last_error   TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at      TIMESTAMPTZ
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS idempotency_keys (
    id              SERIAL PRIMARY KEY,
    idempotency_key TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    outcomes        JSONB,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at      TIMESTAMPTZ NOT NULL,
    UNIQUE (idempotency_key, user_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS queue_messages (
    id         SERIAL PRIMARY KEY,
    queue      VARCHAR(50) NOT NULL,
    payload    JSONB NOT NULL,
    visible_at TIMESTAMPTZ NOT NULL,
    attempts   INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	indexes := []string{
		// Lookup path of the dispatcher and the log queries.
		`CREATE INDEX IF NOT EXISTS idx_notification_logs_user_id ON notification_logs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_logs_status ON notification_logs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_logs_created_at ON notification_logs(created_at DESC)`,
		// Expiry sweep of the idempotency purge job.
		`CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys(expires_at)`,
		// Polling path of the queue consumers.
		`CREATE INDEX IF NOT EXISTS idx_queue_messages_queue_visible ON queue_messages(queue, visible_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// Channel value constraints use DO blocks because ADD CONSTRAINT has no
	// IF NOT EXISTS form. Errors are ignored when the constraint exists.
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_channel_kind'
    ) THEN
        ALTER TABLE user_channel_configs ADD CONSTRAINT chk_channel_kind
        CHECK (channel IN ('webhook', 'lark', 'telegram', 'slack'));
    END IF;
END $$;
`)
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_log_status'
    ) THEN
        ALTER TABLE notification_logs ADD CONSTRAINT chk_log_status
        CHECK (status IN ('pending', 'sent', 'failed', 'retrying'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown drops the delivery schema in reverse dependency order.
// Use with caution: this deletes all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS queue_messages`,
		`DROP TABLE IF EXISTS idempotency_keys`,
		`DROP TABLE IF EXISTS notification_logs`,
		`DROP TABLE IF EXISTS template_variants`,
		`DROP TABLE IF EXISTS templates`,
		`DROP TABLE IF EXISTS user_channel_configs`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
