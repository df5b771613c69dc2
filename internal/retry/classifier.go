package retry

import (
	"strings"
	"time"

	commonerrors "booking-notifications/internal/common/errors"
)

// transientSignatures are lower-cased substrings of failure messages that are
// plausibly resolved by retrying. The wordings cover the network stacks of
// the client runtimes observed in production, including Safari's bare
// "load failed".
var transientSignatures = []string{
	"connection reset",
	"connection refused",
	"socket hang up",
	"timeout",
	"timed out",
	"network error",
	"network request failed",
	"failed to fetch",
	"fetch failed",
	"load failed",
	"broken pipe",
	"temporarily unavailable",
	"too many requests",
	"service unavailable",
}

// IsRetryable reports whether err looks like a transient fault, matching its
// message case-insensitively against known signatures. Anything that does not
// match, validation and authorization failures in particular, fails fast.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Storage returns the retry configuration for storage-layer client calls.
// Structured errors carry their own retryable flag; everything else goes
// through the message classifier.
func Storage(maxRetries int, initialDelay time.Duration) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     5 * time.Second,
		ShouldRetry: func(err error) bool {
			if commonerrors.IsPermanentDelivery(err) || commonerrors.IsValidation(err) {
				return false
			}
			if commonerrors.IsRetryable(err) {
				return true
			}
			return IsRetryable(err)
		},
	}
}

// Transport returns the retry configuration for push transport calls.
// Transport failures are rarely transient, so callers typically pass 0 or 1
// for maxRetries. Permanent gone/not-found signals never retry.
func Transport(maxRetries int, initialDelay time.Duration) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: initialDelay,
		MaxDelay:     2 * time.Second,
		ShouldRetry: func(err error) bool {
			if commonerrors.IsPermanentDelivery(err) {
				return false
			}
			if commonerrors.IsRetryable(err) {
				return true
			}
			return IsRetryable(err)
		},
	}
}
