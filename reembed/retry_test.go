package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		maxAttempts  int
		wantErr      bool
		wantAttempts int
		wantRetries  int
	}{
		{"succeeds first try", 0, 3, false, 1, 0},
		{"eventual success", 2, 5, false, 3, 2},
		{"all attempts fail", 10, 3, true, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			var retried []int
			operation := func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return fmt.Errorf("temporary error %d", attempts)
				}
				return nil
			}

			err := RetryWithBackoff(context.Background(), operation, tt.maxAttempts, time.Millisecond,
				func(attempt int, err error) { retried = append(retried, attempt) })
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), fmt.Sprintf("temporary error %d", tt.maxAttempts), "should return the last error")
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantAttempts, attempts)
			assert.Len(t, retried, tt.wantRetries)
		})
	}
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		attempts := 0
		err := RetryWithBackoff(context.Background(), func(context.Context) error {
			attempts++
			return nil
		}, n, time.Millisecond, nil)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, attempts)
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryWithBackoff_ContextErrorNotRetried(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("calling provider: %w", context.DeadlineExceeded)
	}, 5, time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	operation := func(context.Context) error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 5, 10*time.Millisecond, nil)
	require.NoError(t, err)
	require.Len(t, delays, 3)

	assert.GreaterOrEqual(t, delays[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, delays[1], 20*time.Millisecond)
	assert.GreaterOrEqual(t, delays[2], 40*time.Millisecond)
}
