// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DevicesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_devices_sent_total",
			Help: "Total number of per-device pushes delivered",
		},
		[]string{"notification_type"},
	)

	DevicesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_devices_failed_total",
			Help: "Total number of per-device pushes that failed after retries",
		},
		[]string{"notification_type", "failure_kind"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_retry_attempts_total",
			Help: "Total number of retry attempts made by the retry executor",
		},
		[]string{"operation"},
	)

	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "push_send_duration_seconds",
			Help: "Duration of one logical notification event end to end",
		},
		[]string{"notification_type"},
	)

	SubscriptionsDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_subscriptions_deactivated_total",
			Help: "Total number of subscriptions deactivated (permanent failure, threshold, staleness)",
		},
	)

	CleanupDeletedLogs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_cleanup_deleted_logs_total",
			Help: "Total number of notification log rows deleted by cleanup",
		},
	)
)
