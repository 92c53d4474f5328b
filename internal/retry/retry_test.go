package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rateLimitErr struct{}

func (rateLimitErr) Error() string       { return "rate limited" }
func (rateLimitErr) IsRateLimited() bool { return true }

func failNTimes(n int) func(ctx context.Context) error {
	calls := 0
	return func(ctx context.Context) error {
		calls++
		if calls <= n {
			return errors.New("transient")
		}
		return nil
	}
}

func TestDoSucceedsWithinBudget(t *testing.T) {
	// Échoue 3 fois puis réussit: un budget de 4 doit suffire
	err := Do(context.Background(), 4, Fixed{Interval: time.Millisecond}, failNTimes(3))
	assert.NoError(t, err)
}

func TestDoBudgetExhausted(t *testing.T) {
	err := Do(context.Background(), 3, Fixed{Interval: time.Millisecond}, failNTimes(3))
	require.Error(t, err)

	var budgetErr *BudgetExhaustedError
	require.True(t, errors.As(err, &budgetErr))
	assert.Equal(t, 3, budgetErr.Attempts)
	assert.EqualError(t, budgetErr.Last, "transient")
}

func TestDoPermanentStopsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")

	err := Do(context.Background(), 10, Fixed{Interval: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return Permanent(fatal)
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, fatal, err)
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, 5, Fixed{Interval: time.Hour}, func(ctx context.Context) error {
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestExponentialWait(t *testing.T) {
	policy := Exponential{Base: time.Second}

	assert.Equal(t, 1*time.Second, policy.Wait(1, nil))
	assert.Equal(t, 2*time.Second, policy.Wait(2, nil))
	assert.Equal(t, 4*time.Second, policy.Wait(3, nil))
}

func TestExponentialCap(t *testing.T) {
	policy := Exponential{Base: time.Second, Cap: 3 * time.Second}

	assert.Equal(t, 3*time.Second, policy.Wait(5, nil))
}

func TestProgressiveWait(t *testing.T) {
	// wait = min(1000 * (1 + attempt/5), 3000) ms
	policy := Progressive{Base: time.Second, Cap: 3 * time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 1200 * time.Millisecond},
		{attempt: 5, expected: 2 * time.Second},
		{attempt: 10, expected: 3 * time.Second},
		{attempt: 30, expected: 3 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, policy.Wait(tt.attempt, nil), "attempt %d", tt.attempt)
	}
}

func TestRateLimitOverridesSchedule(t *testing.T) {
	policy := Progressive{Base: time.Second, Cap: 3 * time.Second, RateLimitWait: 5 * time.Second}

	assert.Equal(t, 5*time.Second, policy.Wait(1, rateLimitErr{}))
	assert.Equal(t, 1200*time.Millisecond, policy.Wait(1, errors.New("other")))
}

func TestFixedRateLimitWait(t *testing.T) {
	policy := Fixed{Interval: 8 * time.Second, RateLimitWait: 15 * time.Second}

	assert.Equal(t, 15*time.Second, policy.Wait(1, rateLimitErr{}))
	assert.Equal(t, 8*time.Second, policy.Wait(1, errors.New("other")))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(rateLimitErr{}))
	assert.False(t, IsRateLimited(errors.New("plain")))
	assert.False(t, IsRateLimited(nil))
}
