// internal/notifications/log.go
package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	commonerrors "booking-notifications/internal/common/errors"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/retry"
)

// NotificationLog is the append-mostly audit and read-state store. Rows are
// written once per send event, mutated only to flip is_read, and deleted only
// by cleanup.
type NotificationLog struct {
	db       *sql.DB
	cache    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
	retryCfg retry.Config
}

func NewNotificationLog(db *sql.DB, cache *redis.Client, cacheTTL time.Duration, retryCfg retry.Config, log logger.Logger) *NotificationLog {
	return &NotificationLog{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "notification-log"}),
		retryCfg: retryCfg,
	}
}

// HistoryQuery filters and pages the notification history.
type HistoryQuery struct {
	Limit      int
	Offset     int
	TypeFilter NotificationType // empty means all types
	UnreadOnly bool
}

// HistoryPage is one page of history plus paging metadata.
type HistoryPage struct {
	Entries    []LogEntry
	TotalCount int
	HasMore    bool
}

// Insert writes the single aggregate row for one send event.
func (l *NotificationLog) Insert(ctx context.Context, entry *LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = now
	}
	entry.Status = statusFor(entry.DevicesTargeted, entry.DevicesSucceeded, entry.DevicesFailed)

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return commonerrors.NewValidationError("payload is not serializable: " + err.Error())
	}

	err = retry.DoVoid(ctx, l.retryCfg, func(ctx context.Context) error {
		_, execErr := l.db.ExecContext(ctx, `
			INSERT INTO notification_log (
				id, notification_type, recipient_type, recipient_id, title, body,
				payload, devices_targeted, devices_succeeded, devices_failed,
				status, is_read, created_at, sent_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12, $13)`,
			entry.ID, entry.Type, entry.Recipient.Type, entry.Recipient.ID,
			entry.Title, entry.Body, payload, entry.DevicesTargeted,
			entry.DevicesSucceeded, entry.DevicesFailed, entry.Status,
			entry.CreatedAt, entry.SentAt)
		if execErr != nil {
			return commonerrors.NewPersistenceError("insert notification log", execErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.invalidateBadge(ctx, entry.Recipient)
	return nil
}

// History returns delivered notifications, newest first. Events that never
// reached any device are not shown to the recipient.
func (l *NotificationLog) History(ctx context.Context, ref RecipientRef, q HistoryQuery) (HistoryPage, error) {
	if err := ref.Validate(); err != nil {
		return HistoryPage{}, commonerrors.NewValidationError(err.Error())
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	where := `WHERE recipient_type = $1 AND recipient_id = $2 AND status IN ('sent', 'partial')`
	args := []interface{}{ref.Type, ref.ID}

	if q.TypeFilter != "" {
		args = append(args, q.TypeFilter)
		where += ` AND notification_type = $` + strconv.Itoa(len(args))
	}
	if q.UnreadOnly {
		where += ` AND NOT is_read`
	}

	var total int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_log `+where, args...,
	).Scan(&total); err != nil {
		return HistoryPage{}, commonerrors.NewPersistenceError("count history", err)
	}

	args = append(args, q.Limit, q.Offset)
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, notification_type, recipient_type, recipient_id, title, body,
		       payload, devices_targeted, devices_succeeded, devices_failed,
		       status, is_read, created_at, sent_at
		FROM notification_log `+where+`
		ORDER BY created_at DESC
		LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return HistoryPage{}, commonerrors.NewPersistenceError("query history", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return HistoryPage{}, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return HistoryPage{}, commonerrors.NewPersistenceError("iterate history", err)
	}

	return HistoryPage{
		Entries:    entries,
		TotalCount: total,
		HasMore:    q.Offset+len(entries) < total,
	}, nil
}

// UnreadCount returns the badge value: unread delivered rows of badge-worthy
// types. The count is cached briefly in Redis and recomputed from the store
// after any mutation.
func (l *NotificationLog) UnreadCount(ctx context.Context, ref RecipientRef) (int, error) {
	if err := ref.Validate(); err != nil {
		return 0, commonerrors.NewValidationError(err.Error())
	}

	if l.cache != nil {
		if cached, err := l.cache.Get(ctx, badgeKey(ref)).Result(); err == nil {
			if n, convErr := strconv.Atoi(cached); convErr == nil {
				return n, nil
			}
		}
	}

	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM notification_log
		WHERE recipient_type = $1 AND recipient_id = $2
		  AND NOT is_read
		  AND status IN ('sent', 'partial')
		  AND notification_type = ANY($3)`,
		ref.Type, ref.ID, pq.Array(badgeWorthyTypeStrings()),
	).Scan(&count)
	if err != nil {
		return 0, commonerrors.NewPersistenceError("unread count", err)
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, badgeKey(ref), count, l.cacheTTL).Err(); err != nil {
			l.logger.Warn("badge cache write failed", map[string]interface{}{
				"recipient": ref.String(),
				"error":     err.Error(),
			})
		}
	}
	return count, nil
}

// MarkOneRead flips one row read after verifying the caller owns it, so one
// recipient cannot tamper with another's read state.
func (l *NotificationLog) MarkOneRead(ctx context.Context, ref RecipientRef, notificationID string) error {
	if err := ref.Validate(); err != nil {
		return commonerrors.NewValidationError(err.Error())
	}

	var ownerType, ownerID string
	err := l.db.QueryRowContext(ctx,
		`SELECT recipient_type, recipient_id FROM notification_log WHERE id = $1`,
		notificationID,
	).Scan(&ownerType, &ownerID)
	if err == sql.ErrNoRows {
		return commonerrors.NewNotFoundError("notification", notificationID)
	}
	if err != nil {
		return commonerrors.NewPersistenceError("load notification", err)
	}
	if ownerType != string(ref.Type) || ownerID != ref.ID {
		return commonerrors.NewUnauthorizedError("notification belongs to another recipient")
	}

	if _, err := l.db.ExecContext(ctx,
		`UPDATE notification_log SET is_read = TRUE WHERE id = $1`, notificationID,
	); err != nil {
		return commonerrors.NewPersistenceError("mark read", err)
	}

	l.invalidateBadge(ctx, ref)
	return nil
}

// MarkAllRead flips every currently-unread row of the recipient. Idempotent:
// repeated calls with nothing unread have no effect. The badge is dropped
// from the cache rather than set to zero so notifications written
// concurrently with the mark are still counted on the next read.
func (l *NotificationLog) MarkAllRead(ctx context.Context, ref RecipientRef) error {
	if err := ref.Validate(); err != nil {
		return commonerrors.NewValidationError(err.Error())
	}

	if _, err := l.db.ExecContext(ctx, `
		UPDATE notification_log SET is_read = TRUE
		WHERE recipient_type = $1 AND recipient_id = $2 AND NOT is_read`,
		ref.Type, ref.ID,
	); err != nil {
		return commonerrors.NewPersistenceError("mark all read", err)
	}

	l.invalidateBadge(ctx, ref)
	return nil
}

// deleteOlderThan hard-deletes rows past the retention window. Cleanup only.
func (l *NotificationLog) deleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM notification_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, commonerrors.NewPersistenceError("delete old logs", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

func (l *NotificationLog) invalidateBadge(ctx context.Context, ref RecipientRef) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Del(ctx, badgeKey(ref)).Err(); err != nil {
		l.logger.Warn("badge cache invalidation failed", map[string]interface{}{
			"recipient": ref.String(),
			"error":     err.Error(),
		})
	}
}

func badgeKey(ref RecipientRef) string {
	return "badge:" + ref.String()
}

func badgeWorthyTypeStrings() []string {
	out := make([]string, len(badgeWorthyTypes))
	for i, t := range badgeWorthyTypes {
		out[i] = string(t)
	}
	return out
}

func scanLogEntry(rows *sql.Rows) (LogEntry, error) {
	var entry LogEntry
	var payload []byte
	if err := rows.Scan(
		&entry.ID, &entry.Type, &entry.Recipient.Type, &entry.Recipient.ID,
		&entry.Title, &entry.Body, &payload, &entry.DevicesTargeted,
		&entry.DevicesSucceeded, &entry.DevicesFailed, &entry.Status,
		&entry.IsRead, &entry.CreatedAt, &entry.SentAt,
	); err != nil {
		return LogEntry{}, commonerrors.NewPersistenceError("scan log entry", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return LogEntry{}, commonerrors.NewPersistenceError("decode payload", err)
		}
	}
	return entry, nil
}
