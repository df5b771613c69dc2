// Package retry provides a bounded-retry executor with exponential backoff
// for any fallible operation. Delivery and storage code share this one
// mechanism instead of carrying per-call-site backoff loops.
package retry

import (
	"context"
	"math/rand"
	"time"
)

const growthFactor = 2

// Config controls a single retry run. A zero ShouldRetry retries every error.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	ShouldRetry  func(err error) bool
	OnRetry      func(attempt int, err error, delay time.Duration)
}

// Do executes op at most cfg.MaxRetries+1 times. A non-retryable error is
// returned after exactly one invocation. Between attempts it sleeps
// min(MaxDelay, InitialDelay*2^attempt) plus bounded jitter, yielding on
// ctx cancellation. Do holds no state beyond the attempt counter and is safe
// for concurrent use.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := backoffDelay(cfg, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-time.After(withJitter(delay)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// DoVoid is Do for operations with no result value.
func DoVoid(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	_, err := Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// backoffDelay returns the pre-jitter delay for the given zero-based attempt
// index. The sequence is non-decreasing and capped at MaxDelay.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= growthFactor
		if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

// withJitter adds up to 20% random jitter so synchronized callers do not
// retry in lockstep.
func withJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return delay + time.Duration(rand.Int63n(int64(delay)/5+1))
}
