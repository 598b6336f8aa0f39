package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/docextract/pkg/types"
)

// Execute runs fn behind the limiter's admission gate and retries it when
// it fails with types.ErrRateLimited. Any other error is returned
// immediately. After MaxRetries rate-limited attempts it returns an error
// wrapping types.ErrRetryExhausted.
func Execute[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < l.cfg.MaxRetries; attempt++ {
		if err := l.Wait(ctx); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, types.ErrRateLimited) {
			return zero, err
		}
		lastErr = err

		// Don't sleep after the final attempt
		if attempt == l.cfg.MaxRetries-1 {
			break
		}

		wait := l.BackoffFor(attempt)
		l.log.Warn().
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Int("max_retries", l.cfg.MaxRetries).
			Msg("rate limit exceeded, retrying")
		l.recordRetry()
		if err := l.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: failed after %d attempts: %v", types.ErrRetryExhausted, l.cfg.MaxRetries, lastErr)
}

// Do is Execute for calls without a result value
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, l, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
