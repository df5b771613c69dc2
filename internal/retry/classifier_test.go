package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	commonerrors "booking-notifications/internal/common/errors"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"socket hang up", errors.New("socket hang up"), true},
		{"timeout", errors.New("request timeout exceeded"), true},
		{"timed out", errors.New("dial tcp: i/o timed out"), true},
		{"network error", errors.New("Network Error"), true},
		{"failed to fetch", errors.New("TypeError: Failed to fetch"), true},
		{"fetch failed", errors.New("fetch failed"), true},
		{"safari load failed", errors.New("Load failed"), true},
		{"case insensitive", errors.New("CONNECTION RESET"), true},
		{"nil error", nil, false},
		{"validation", errors.New("validation failed: endpoint is required"), false},
		{"authorization", errors.New("unauthorized: token expired"), false},
		{"not found", errors.New("recipient does not exist"), false},
		{"unrelated", errors.New("duplicate key value violates unique constraint"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestTransportConfig_NeverRetriesPermanentFailure(t *testing.T) {
	cfg := Transport(2, time.Millisecond)

	permanent := commonerrors.NewPermanentDeliveryError("https://push.example/abc", 410)
	assert.False(t, cfg.ShouldRetry(permanent))

	transient := commonerrors.NewTransientDeliveryError("https://push.example/abc", errors.New("connection reset"))
	assert.True(t, cfg.ShouldRetry(transient))

	// Plain errors fall through to the message classifier.
	assert.True(t, cfg.ShouldRetry(errors.New("timeout")))
	assert.False(t, cfg.ShouldRetry(errors.New("malformed payload")))
}

func TestStorageConfig_HonorsStructuredRetryability(t *testing.T) {
	cfg := Storage(3, time.Millisecond)

	assert.True(t, cfg.ShouldRetry(commonerrors.NewPersistenceError("insert", errors.New("deadlock detected"))))
	assert.False(t, cfg.ShouldRetry(commonerrors.NewValidationError("recipient id is empty")))
	assert.True(t, cfg.ShouldRetry(errors.New("pq: connection reset by peer")))
	assert.False(t, cfg.ShouldRetry(errors.New("pq: null value in column")))
}
