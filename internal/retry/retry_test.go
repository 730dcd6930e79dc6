package retry_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barad1tos/reconciler/internal/kinds"
	"github.com/barad1tos/reconciler/internal/model"
	"github.com/barad1tos/reconciler/internal/retry"
)

func TestIsTransientNetError(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: errors.New("boom")}
	assert.True(t, retry.IsTransient(err))
}

func TestIsTransientMessagePattern(t *testing.T) {
	assert.True(t, retry.IsTransient(errors.New("Connection Refused by peer")))
	assert.True(t, retry.IsTransient(errors.New("deadlock detected")))
	assert.False(t, retry.IsTransient(errors.New("invalid input syntax")))
}

func TestIsTransientNilIsFalse(t *testing.T) {
	assert.False(t, retry.IsTransient(nil))
}

func TestDelayNeverExceedsMaxAndNeverNegative(t *testing.T) {
	policy := model.RetryPolicy{BaseDelaySeconds: 1, ExponentialBase: 2, MaxDelaySeconds: 60, JitterRange: 0.2, MaxRetries: 10}
	for attempt := 0; attempt < 20; attempt++ {
		d := retry.Delay(policy, attempt)
		assert.LessOrEqualf(t, d, time.Duration(float64(policy.MaxDelaySeconds)*(1+policy.JitterRange))*time.Second, "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestDelayDeterministicAcrossReplays(t *testing.T) {
	policy := model.RetryPolicy{BaseDelaySeconds: 1, ExponentialBase: 2, MaxDelaySeconds: 60, JitterRange: 0.1, MaxRetries: 5}
	for attempt := 0; attempt <= 3; attempt++ {
		d1 := retry.Delay(policy, attempt)
		d2 := retry.Delay(policy, attempt)
		assert.Equal(t, d1, d2)
	}
}

func TestDelayScenarioSixRanges(t *testing.T) {
	policy := model.RetryPolicy{BaseDelaySeconds: 1, ExponentialBase: 2, MaxDelaySeconds: 60, JitterRange: 0.1, MaxRetries: 3}
	wantRanges := [][2]float64{{0.9, 1.1}, {1.8, 2.2}, {3.6, 4.4}, {7.2, 8.8}}
	for attempt, r := range wantRanges {
		d := retry.Delay(policy, attempt).Seconds()
		assert.GreaterOrEqualf(t, d, r[0], "attempt %d", attempt)
		assert.LessOrEqualf(t, d, r[1], "attempt %d", attempt)
	}
}

func TestRunSucceedsFirstTry(t *testing.T) {
	policy := model.DefaultRetryPolicy()
	calls := 0
	err := retry.Run(context.Background(), "op1", policy, nil, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunRetriesTransientThenSucceeds(t *testing.T) {
	policy := model.RetryPolicy{MaxRetries: 3, BaseDelaySeconds: 0.001, ExponentialBase: 2, MaxDelaySeconds: 0.01, JitterRange: 0, OperationTimeoutSecs: 10}
	calls := 0
	err := retry.Run(context.Background(), "op2", policy, nil, func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunNonTransientStopsImmediately(t *testing.T) {
	policy := model.DefaultRetryPolicy()
	calls := 0
	err := retry.Run(context.Background(), "op3", policy, nil, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("invalid input syntax")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunExhaustsRetriesAndReturnsLastError(t *testing.T) {
	policy := model.RetryPolicy{MaxRetries: 2, BaseDelaySeconds: 0.001, ExponentialBase: 2, MaxDelaySeconds: 0.01, JitterRange: 0, OperationTimeoutSecs: 10}
	calls := 0
	err := retry.Run(context.Background(), "op4", policy, nil, func(ctx context.Context, attempt int) error {
		calls++
		return errors.New("timeout talking to upstream")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls) // attempts 0,1,2 = MaxRetries+1
}

func TestRunContextCancellationStopsRetrying(t *testing.T) {
	policy := model.RetryPolicy{MaxRetries: 5, BaseDelaySeconds: 1, ExponentialBase: 2, MaxDelaySeconds: 5, JitterRange: 0, OperationTimeoutSecs: 300}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Run(ctx, "op5", policy, nil, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRunNonPositiveTimeoutDisablesDeadline(t *testing.T) {
	policy := model.RetryPolicy{MaxRetries: 5, BaseDelaySeconds: 0, ExponentialBase: 2, MaxDelaySeconds: 0, JitterRange: 0, OperationTimeoutSecs: -1}
	calls := 0
	err := retry.Run(context.Background(), "op6", policy, nil, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	// A non-positive OperationTimeoutSecs disables the deadline per
	// RetryOperationContext.ExceededDeadline, so this should still run.
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	_ = kinds.ErrDeadlineExceeded
}
