// internal/notifications/schema.go
package notifications

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the two tables if they do not exist. Intended for the
// service binary at startup; production deployments may manage the schema
// out of band, in which case this is a no-op.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS push_subscriptions (
			id                   UUID PRIMARY KEY,
			recipient_type       TEXT NOT NULL,
			recipient_id         TEXT NOT NULL,
			endpoint             TEXT NOT NULL UNIQUE,
			keys_p256dh          TEXT NOT NULL,
			keys_auth            TEXT NOT NULL,
			device_type          TEXT NOT NULL DEFAULT 'desktop',
			device_name          TEXT NOT NULL DEFAULT '',
			user_agent           TEXT NOT NULL DEFAULT '',
			is_active            BOOLEAN NOT NULL DEFAULT TRUE,
			last_used            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_delivery_status TEXT,
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_push_subscriptions_recipient
			ON push_subscriptions (recipient_type, recipient_id) WHERE is_active`,
		`CREATE TABLE IF NOT EXISTS notification_log (
			id                 UUID PRIMARY KEY,
			notification_type  TEXT NOT NULL,
			recipient_type     TEXT NOT NULL,
			recipient_id       TEXT NOT NULL,
			title              TEXT NOT NULL,
			body               TEXT NOT NULL,
			payload            JSONB,
			devices_targeted   INTEGER NOT NULL,
			devices_succeeded  INTEGER NOT NULL,
			devices_failed     INTEGER NOT NULL,
			status             TEXT NOT NULL,
			is_read            BOOLEAN NOT NULL DEFAULT FALSE,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			sent_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notification_log_recipient
			ON notification_log (recipient_type, recipient_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
