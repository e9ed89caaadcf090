package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// retryPolicy re-runs an operation with a fixed delay. attempts counts the retries
// after the first call, so an operation runs at most attempts+1 times.
type retryPolicy struct {
	name      string
	attempts  int
	delay     time.Duration
	retryable func(error) bool
	logger    *slog.Logger
}

func (p retryPolicy) do(ctx context.Context, op func(attempt int) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = op(attempt)
		if lastErr == nil {
			if attempt > 0 {
				p.logger.Info("operation succeeded after retry", "operation", p.name, "attempt", attempt+1)
			}
			return nil
		}

		retryable := p.retryable == nil || p.retryable(lastErr)
		if attempt >= p.attempts || !retryable {
			p.logger.Error("operation failed permanently",
				"operation", p.name,
				"attempt", attempt+1,
				"retryable", retryable,
				"error", lastErr)
			return lastErr
		}

		p.logger.Warn("operation attempt failed",
			"operation", p.name,
			"attempt", attempt+1,
			"max_attempts", p.attempts+1,
			"retry_delay_ms", p.delay.Milliseconds(),
			"error", lastErr)

		if err := sleepContext(ctx, p.delay); err != nil {
			return errors.Join(lastErr, fmt.Errorf("retry cancelled: %w", err))
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
