package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	assert.Zero(t, CalculateBackoff(0, time.Second, 10*time.Second))
	for range 20 {
		assert.LessOrEqual(t, CalculateBackoff(1, time.Second, 10*time.Second), time.Second)
		assert.LessOrEqual(t, CalculateBackoff(3, time.Second, 10*time.Second), 4*time.Second)
		assert.LessOrEqual(t, CalculateBackoff(20, time.Second, 5*time.Second), 5*time.Second)
	}
}

func TestRetryDelayHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Second}
	err := &LLMError{Err: errors.New("429"), StatusCode: 429, RetryAfter: 500 * time.Millisecond}
	assert.Equal(t, 500*time.Millisecond, retryDelay(err, 1, cfg))

	err.RetryAfter = time.Minute
	assert.Equal(t, time.Second, retryDelay(err, 1, cfg), "capped at MaxDelay")
}

func TestSleep(t *testing.T) {
	t.Parallel()

	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after transient error", func(t *testing.T) {
		t.Parallel()
		calls, retries := 0, 0
		err := WithRetry(context.Background(), fastRetry(3),
			func(int, error) { retries++ },
			func(context.Context) error {
				calls++
				if calls < 2 {
					return errors.New("503 unavailable")
				}
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, retries)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(context.Background(), fastRetry(3), nil, func(context.Context) error {
			calls++
			return WrapError(errors.New("bad key"), ProviderGroq, 401)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("fallback error is not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(context.Background(), fastRetry(3), nil, func(context.Context) error {
			calls++
			return ErrEmptyAnswer
		})
		require.ErrorIs(t, err, ErrEmptyAnswer)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(context.Background(), fastRetry(2), nil, func(context.Context) error {
			calls++
			return errors.New("timeout")
		})
		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_ = WithRetry(context.Background(), RetryConfig{}, nil, func(context.Context) error {
			calls++
			return nil
		})
		assert.Equal(t, 1, calls)
	})
}

func TestHasSufficientBudget(t *testing.T) {
	t.Parallel()

	assert.True(t, HasSufficientBudget(context.Background(), time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.True(t, HasSufficientBudget(ctx, time.Millisecond))
	assert.False(t, HasSufficientBudget(ctx, time.Hour))
}
