package genai

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// CalculateBackoff returns a full-jitter delay before retry number attempt:
//
//	delay = random(0, min(max, initial * 2^(attempt-1)))
func CalculateBackoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if delay > maxDelay {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}

	jitter, err := rand.Int(rand.Reader, big.NewInt(int64(delay)))
	if err != nil {
		return delay / 2
	}
	return time.Duration(jitter.Int64())
}

// retryDelay honors a server-requested Retry-After up to maxDelay.
func retryDelay(err error, attempt int, cfg RetryConfig) time.Duration {
	delay := CalculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay)
	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.RetryAfter > delay {
		delay = min(llmErr.RetryAfter, cfg.MaxDelay)
	}
	return delay
}

// Sleep waits for d unless ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRetry runs fn up to cfg.MaxAttempts times while ClassifyError says
// retry. onRetry, if set, is called before each retry.
func WithRetry(ctx context.Context, cfg RetryConfig, onRetry func(attempt int, err error), fn func(ctx context.Context) error) error {
	attempts := max(cfg.MaxAttempts, 1)
	var lastErr error

	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ClassifyError(err) != ActionRetry || attempt == attempts-1 {
			break
		}

		delay := retryDelay(err, attempt+1, cfg)
		if !HasSufficientBudget(ctx, delay) {
			break
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		if err := Sleep(ctx, delay); err != nil {
			return lastErr
		}
	}

	return lastErr
}

// HasSufficientBudget reports whether ctx leaves at least required time.
func HasSufficientBudget(ctx context.Context, required time.Duration) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return true
	}
	return time.Until(deadline) >= required
}
