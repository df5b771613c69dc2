// internal/notifications/cleanup.go
package notifications

import (
	"context"
	"time"

	"booking-notifications/internal/common/config"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/common/metrics"
)

// CleanupJob is the periodic sweep over both stores. It is idempotent and
// safe to run concurrently with sends: every statement acts only on rows
// matching its own staleness predicate at call time.
type CleanupJob struct {
	registry *SubscriptionRegistry
	journal  *NotificationLog
	cfg      config.CleanupConfig
	logger   logger.Logger
}

func NewCleanupJob(registry *SubscriptionRegistry, journal *NotificationLog, cfg config.CleanupConfig, log logger.Logger) *CleanupJob {
	return &CleanupJob{
		registry: registry,
		journal:  journal,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "cleanup"}),
	}
}

// CleanupResult reports what one run removed.
type CleanupResult struct {
	Deactivated int64 `json:"deactivated"`
	DeletedLogs int64 `json:"deletedLogs"`
}

// Run deactivates subscriptions past the failure threshold or unused longer
// than the staleness window, then deletes log rows older than the retention
// window. A failure in one half does not skip the other.
func (j *CleanupJob) Run(ctx context.Context) (CleanupResult, error) {
	var result CleanupResult
	var firstErr error

	now := time.Now().UTC()

	deactivated, err := j.registry.sweepStale(ctx, j.cfg.FailureThreshold, now.Add(-j.cfg.StalenessWindow))
	if err != nil {
		j.logger.Error("stale subscription sweep failed", map[string]interface{}{"error": err.Error()})
		firstErr = err
	} else {
		result.Deactivated = deactivated
	}

	deleted, err := j.journal.deleteOlderThan(ctx, now.Add(-j.cfg.LogRetention))
	if err != nil {
		j.logger.Error("log retention sweep failed", map[string]interface{}{"error": err.Error()})
		if firstErr == nil {
			firstErr = err
		}
	} else {
		result.DeletedLogs = deleted
		metrics.CleanupDeletedLogs.Add(float64(deleted))
	}

	j.logger.Info("cleanup run finished", map[string]interface{}{
		"deactivated": result.Deactivated,
		"deletedLogs": result.DeletedLogs,
	})

	return result, firstErr
}
