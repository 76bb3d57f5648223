// Package retry wraps provider calls with bounded retries. Components never
// retry internally; the processor applies this around the calls it makes.
package retry

import (
	"context"
	"log/slog"
	"time"

	"reelay/internal/services"
)

// Policy bounds a retried operation.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
}

// New builds a policy. Attempts below 1 are clamped to 1.
func New(attempts int, delay time.Duration, logger *slog.Logger) Policy {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Policy{Attempts: attempts, Delay: delay, Logger: logger}
}

// Do runs op up to Attempts times, sleeping Delay between attempts. It stops
// early on success, on context cancellation, and on errors the taxonomy marks
// non-retryable (validation, configuration).
func (p Policy) Do(ctx context.Context, operation string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !services.Retryable(lastErr) || attempt == p.Attempts {
			return lastErr
		}
		p.Logger.Warn("operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", p.Attempts,
			"error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return lastErr
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, operation string, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, operation, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
