// internal/notifications/registry.go
package notifications

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	commonerrors "booking-notifications/internal/common/errors"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/common/metrics"
	"booking-notifications/internal/retry"
)

// RecipientDirectory checks that a recipient exists. The identity service
// owns the lookup; the registry only consults it on registration.
type RecipientDirectory interface {
	Exists(ctx context.Context, ref RecipientRef) (bool, error)
}

// SubscriptionRegistry owns CRUD and delivery-health bookkeeping for
// per-device push registrations.
type SubscriptionRegistry struct {
	db        *sql.DB
	directory RecipientDirectory
	logger    logger.Logger
	retryCfg  retry.Config
}

func NewSubscriptionRegistry(db *sql.DB, directory RecipientDirectory, retryCfg retry.Config, log logger.Logger) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		db:        db,
		directory: directory,
		logger:    log.WithFields(map[string]interface{}{"component": "subscription-registry"}),
		retryCfg:  retryCfg,
	}
}

// SaveInput carries a device registration request.
type SaveInput struct {
	Recipient  RecipientRef `json:"recipient"`
	Endpoint   string       `json:"endpoint"`
	KeysP256dh string       `json:"keysP256dh"`
	KeysAuth   string       `json:"keysAuth"`
	DeviceType DeviceType   `json:"deviceType"`
	DeviceName string       `json:"deviceName"`
	UserAgent  string       `json:"userAgent"`
}

// Save upserts a registration by endpoint and returns the subscription id.
// Re-registering a known endpoint refreshes its keys and device metadata but
// never reactivates a row the server already deactivated: dead endpoints stay
// dead even when a stale client re-announces them.
func (r *SubscriptionRegistry) Save(ctx context.Context, in SaveInput) (string, error) {
	if err := in.Recipient.Validate(); err != nil {
		return "", commonerrors.NewValidationError(err.Error())
	}
	if in.Endpoint == "" {
		return "", commonerrors.NewValidationError("endpoint is required")
	}
	if in.KeysP256dh == "" || in.KeysAuth == "" {
		return "", commonerrors.NewValidationError("subscription keys are required")
	}

	if r.directory != nil {
		exists, err := r.directory.Exists(ctx, in.Recipient)
		if err != nil {
			return "", commonerrors.NewPersistenceError("recipient lookup", err)
		}
		if !exists {
			return "", commonerrors.NewValidationError(fmt.Sprintf("recipient %s does not exist", in.Recipient))
		}
	}

	id := uuid.New().String()
	return retry.Do(ctx, r.retryCfg, func(ctx context.Context) (string, error) {
		var savedID string
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO push_subscriptions (
				id, recipient_type, recipient_id, endpoint, keys_p256dh, keys_auth,
				device_type, device_name, user_agent, is_active, last_used,
				consecutive_failures, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, NOW(), 0, NOW())
			ON CONFLICT (endpoint) DO UPDATE SET
				recipient_type = EXCLUDED.recipient_type,
				recipient_id   = EXCLUDED.recipient_id,
				keys_p256dh    = EXCLUDED.keys_p256dh,
				keys_auth      = EXCLUDED.keys_auth,
				device_type    = EXCLUDED.device_type,
				device_name    = EXCLUDED.device_name,
				user_agent     = EXCLUDED.user_agent,
				last_used      = NOW()
			RETURNING id`,
			id, in.Recipient.Type, in.Recipient.ID, in.Endpoint, in.KeysP256dh,
			in.KeysAuth, in.DeviceType, in.DeviceName, in.UserAgent,
		).Scan(&savedID)
		if err != nil {
			return "", commonerrors.NewPersistenceError("save subscription", err)
		}
		return savedID, nil
	})
}

// Remove hard-deletes a subscription by id.
func (r *SubscriptionRegistry) Remove(ctx context.Context, subscriptionID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, subscriptionID)
	if err != nil {
		return commonerrors.NewPersistenceError("remove subscription", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return commonerrors.NewNotFoundError("subscription", subscriptionID)
	}
	return nil
}

// DeactivateByEndpoint flips a subscription inactive. Deactivated rows are
// excluded from future sends but kept for audit until cleanup deletes them.
func (r *SubscriptionRegistry) DeactivateByEndpoint(ctx context.Context, endpoint string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE WHERE endpoint = $1 AND is_active`, endpoint)
	if err != nil {
		return commonerrors.NewPersistenceError("deactivate subscription", err)
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		metrics.SubscriptionsDeactivated.Add(float64(rows))
		r.logger.Info("subscription deactivated", map[string]interface{}{
			"endpoint": endpoint,
		})
	}
	return nil
}

// ListActive returns every active registration of the recipient, any order.
func (r *SubscriptionRegistry) ListActive(ctx context.Context, ref RecipientRef) ([]PushSubscription, error) {
	if err := ref.Validate(); err != nil {
		return nil, commonerrors.NewValidationError(err.Error())
	}

	return retry.Do(ctx, r.retryCfg, func(ctx context.Context) ([]PushSubscription, error) {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, recipient_type, recipient_id, endpoint, keys_p256dh, keys_auth,
			       device_type, device_name, user_agent, is_active, last_used,
			       COALESCE(last_delivery_status, ''), consecutive_failures, created_at
			FROM push_subscriptions
			WHERE recipient_type = $1 AND recipient_id = $2 AND is_active`,
			ref.Type, ref.ID)
		if err != nil {
			return nil, commonerrors.NewPersistenceError("list subscriptions", err)
		}
		defer rows.Close()

		var subs []PushSubscription
		for rows.Next() {
			var s PushSubscription
			if err := rows.Scan(
				&s.ID, &s.Recipient.Type, &s.Recipient.ID, &s.Endpoint,
				&s.KeysP256dh, &s.KeysAuth, &s.DeviceType, &s.DeviceName,
				&s.UserAgent, &s.IsActive, &s.LastUsed, &s.LastDeliveryStatus,
				&s.ConsecutiveFailures, &s.CreatedAt,
			); err != nil {
				return nil, commonerrors.NewPersistenceError("scan subscription", err)
			}
			subs = append(subs, s)
		}
		if err := rows.Err(); err != nil {
			return nil, commonerrors.NewPersistenceError("iterate subscriptions", err)
		}
		return subs, nil
	})
}

// MarkDeliverySuccess resets the failure streak after a delivered push.
func (r *SubscriptionRegistry) MarkDeliverySuccess(ctx context.Context, subscriptionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET consecutive_failures = 0, last_used = NOW(), last_delivery_status = 'success'
		WHERE id = $1`, subscriptionID)
	if err != nil {
		return commonerrors.NewPersistenceError("mark delivery success", err)
	}
	return nil
}

// MarkDeliveryFailure bumps the failure streak and deactivates the row once
// the streak exceeds threshold. Returns whether the row is still active.
func (r *SubscriptionRegistry) MarkDeliveryFailure(ctx context.Context, subscriptionID string, threshold int) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx, `
		UPDATE push_subscriptions
		SET consecutive_failures = consecutive_failures + 1,
		    last_delivery_status = 'failure',
		    is_active = is_active AND consecutive_failures + 1 <= $2
		WHERE id = $1
		RETURNING is_active`, subscriptionID, threshold).Scan(&active)
	if err != nil {
		return false, commonerrors.NewPersistenceError("mark delivery failure", err)
	}
	if !active {
		metrics.SubscriptionsDeactivated.Inc()
		r.logger.Warn("subscription deactivated after repeated failures", map[string]interface{}{
			"subscriptionId": subscriptionID,
			"threshold":      threshold,
		})
	}
	return active, nil
}

// Stats returns aggregate counters for observability.
func (r *SubscriptionRegistry) Stats(ctx context.Context) (RegistryStats, error) {
	var stats RegistryStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE NOT is_active),
		       COUNT(DISTINCT (recipient_type, recipient_id))
		FROM push_subscriptions`,
	).Scan(&stats.ActiveCount, &stats.InactiveCount, &stats.Recipients)
	if err != nil {
		return RegistryStats{}, commonerrors.NewPersistenceError("registry stats", err)
	}
	return stats, nil
}

// sweepStale deactivates rows past the failure threshold or unused longer
// than the staleness window. Called by the cleanup job; the predicate runs
// entirely in the database so concurrent sends need no coordination.
func (r *SubscriptionRegistry) sweepStale(ctx context.Context, threshold int, stalenessCutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE push_subscriptions
		SET is_active = FALSE
		WHERE is_active AND (consecutive_failures > $1 OR last_used < $2)`,
		threshold, stalenessCutoff)
	if err != nil {
		return 0, commonerrors.NewPersistenceError("sweep stale subscriptions", err)
	}
	rows, _ := res.RowsAffected()
	if rows > 0 {
		metrics.SubscriptionsDeactivated.Add(float64(rows))
	}
	return rows, nil
}
