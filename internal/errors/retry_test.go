package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, errors.New("still broken")
	})

	require.Error(t, err)
	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.ErrorContains(t, err, "still broken")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(), func() error {
		return errors.New("never reached on canceled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		return "", New(ErrCodeLLMFailed, "model rejected the request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "non-retryable errors fail fast")
	assert.Equal(t, ErrCodeLLMFailed, CodeOf(err))
	assert.NotContains(t, err.Error(), "failed after")
}

func TestRetry_RetryableScholaqErrorKeepsRetrying(t *testing.T) {
	attempts := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, New(ErrCodeLLMUnavailable, "endpoint unreachable").WithRetryable(true)
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetry_StopsOnWrappedNonRetryableError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return fmt.Errorf("stage failed: %w", New(ErrCodeLLMBadOutput, "unparseable response"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_NoRetriesOnImmediateSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}
