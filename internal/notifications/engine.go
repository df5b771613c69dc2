// internal/notifications/engine.go
package notifications

import (
	"context"
	"encoding/json"
	"time"

	"booking-notifications/internal/common/config"
	commonerrors "booking-notifications/internal/common/errors"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/common/metrics"
	"booking-notifications/internal/push"
	"booking-notifications/internal/retry"
)

// DeliveryEngine orchestrates one logical notification event: it resolves
// the recipient's active devices, fans the payload out through the transport
// with bounded retries, records per-device health, and writes exactly one
// aggregate log row after all outcomes are known.
type DeliveryEngine struct {
	registry *SubscriptionRegistry
	journal  *NotificationLog
	sender   push.Sender
	cfg      config.DeliveryConfig
	logger   logger.Logger
}

func NewDeliveryEngine(registry *SubscriptionRegistry, journal *NotificationLog, sender push.Sender, cfg config.DeliveryConfig, log logger.Logger) *DeliveryEngine {
	return &DeliveryEngine{
		registry: registry,
		journal:  journal,
		sender:   sender,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "delivery-engine"}),
	}
}

// wirePayload is what actually goes over the push transport.
type wirePayload struct {
	Title string                 `json:"title"`
	Body  string                 `json:"body"`
	Type  NotificationType       `json:"type"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Send delivers one event to every active device of its recipient. Per-device
// failures are aggregated into the result and the log row, never returned as
// errors; the only hard failures are malformed input and a missing transport,
// both of which occur before any side effect.
func (e *DeliveryEngine) Send(ctx context.Context, event Event) (SendResult, error) {
	if err := event.Validate(); err != nil {
		return SendResult{}, commonerrors.NewValidationError(err.Error())
	}
	if e.sender == nil {
		return SendResult{}, commonerrors.NewConfigurationError("push transport is not configured")
	}

	start := time.Now()
	defer func() {
		metrics.SendDuration.WithLabelValues(string(event.Type)).Observe(time.Since(start).Seconds())
	}()

	log := e.logger.WithFields(map[string]interface{}{
		"recipient":        event.Recipient.String(),
		"notificationType": string(event.Type),
	})

	subs, err := e.registry.ListActive(ctx, event.Recipient)
	if err != nil {
		// Nothing was sent; report the outcome instead of failing the
		// workflow that triggered the notification.
		log.Error("active subscription lookup failed", map[string]interface{}{"error": err.Error()})
		return SendResult{Success: false, Errors: []string{err.Error()}}, nil
	}

	if len(subs) == 0 {
		entry := e.newLogEntry(event, 0, 0, 0)
		if err := e.journal.Insert(ctx, entry); err != nil {
			log.Error("log write failed for empty fan-out", map[string]interface{}{"error": err.Error()})
		}
		return SendResult{
			Success: false,
			Errors:  []string{"No active subscriptions"},
			LogID:   entry.ID,
		}, nil
	}

	payload, err := json.Marshal(wirePayload{
		Title: event.Title,
		Body:  event.Body,
		Type:  event.Type,
		Data:  event.Payload,
	})
	if err != nil {
		return SendResult{}, commonerrors.NewValidationError("payload is not serializable: " + err.Error())
	}

	var succeeded, failed int
	var sendErrors []string

	// Sequential fan-out: each device carries independent retry state and
	// only the event-local counters are shared.
	for _, sub := range subs {
		if err := e.sendToDevice(ctx, sub, payload, log); err != nil {
			failed++
			sendErrors = append(sendErrors, sub.Endpoint+": "+err.Error())
			metrics.DevicesFailed.WithLabelValues(string(event.Type), failureKind(err)).Inc()
		} else {
			succeeded++
			metrics.DevicesSent.WithLabelValues(string(event.Type)).Inc()
		}
	}

	entry := e.newLogEntry(event, len(subs), succeeded, failed)
	if err := e.journal.Insert(ctx, entry); err != nil {
		// The pushes already reached their devices; never roll back or
		// resend over a bookkeeping failure.
		log.Error("log write failed after delivery", map[string]interface{}{
			"error":     err.Error(),
			"succeeded": succeeded,
			"failed":    failed,
		})
		entry.ID = ""
	}

	log.Info("notification event processed", map[string]interface{}{
		"targeted":  len(subs),
		"succeeded": succeeded,
		"failed":    failed,
		"status":    string(statusFor(len(subs), succeeded, failed)),
	})

	return SendResult{
		Success: failed == 0,
		Sent:    succeeded,
		Failed:  failed,
		Errors:  sendErrors,
		LogID:   entry.ID,
	}, nil
}

// sendToDevice pushes to one subscription and records its health. A permanent
// gone/not-found signal deactivates the row immediately; transient failures
// bump the streak and deactivate past the configured threshold.
func (e *DeliveryEngine) sendToDevice(ctx context.Context, sub PushSubscription, payload []byte, log logger.Logger) error {
	retryCfg := retry.Transport(e.cfg.TransportMaxRetries, e.cfg.TransportRetryDelay)
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.RetryAttempts.WithLabelValues("transport-send").Inc()
		log.Warn("push retry scheduled", map[string]interface{}{
			"endpoint": sub.Endpoint,
			"attempt":  attempt,
			"delay":    delay.String(),
			"error":    err.Error(),
		})
	}

	sendErr := retry.DoVoid(ctx, retryCfg, func(ctx context.Context) error {
		return e.sender.Send(ctx, push.Subscription{
			Endpoint: sub.Endpoint,
			P256dh:   sub.KeysP256dh,
			Auth:     sub.KeysAuth,
		}, payload)
	})

	if sendErr == nil {
		if err := e.registry.MarkDeliverySuccess(ctx, sub.ID); err != nil {
			// Device got the push; the stale health row is an operator
			// concern, not a delivery failure.
			log.Warn("health bookkeeping failed after delivery", map[string]interface{}{
				"subscriptionId": sub.ID,
				"error":          err.Error(),
			})
		}
		return nil
	}

	if commonerrors.IsPermanentDelivery(sendErr) {
		if err := e.registry.DeactivateByEndpoint(ctx, sub.Endpoint); err != nil {
			log.Warn("deactivation failed", map[string]interface{}{
				"endpoint": sub.Endpoint,
				"error":    err.Error(),
			})
		}
		return sendErr
	}

	if _, err := e.registry.MarkDeliveryFailure(ctx, sub.ID, e.cfg.FailureThreshold); err != nil {
		log.Warn("failure bookkeeping failed", map[string]interface{}{
			"subscriptionId": sub.ID,
			"error":          err.Error(),
		})
	}
	return sendErr
}

func (e *DeliveryEngine) newLogEntry(event Event, targeted, succeeded, failed int) *LogEntry {
	return &LogEntry{
		Type:             event.Type,
		Recipient:        event.Recipient,
		Title:            event.Title,
		Body:             event.Body,
		Payload:          event.Payload,
		DevicesTargeted:  targeted,
		DevicesSucceeded: succeeded,
		DevicesFailed:    failed,
	}
}

func failureKind(err error) string {
	if commonerrors.IsPermanentDelivery(err) {
		return "permanent"
	}
	return "transient"
}
