package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/refund-reconciler/internal/retry"
)

type fakeSleeper struct {
	waits []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.waits = append(f.waits, d)
	return nil
}

func TestDo_StopsOnFirstSuccess(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	attempts, err := retry.Do(context.Background(), retry.Policy{Attempts: 2, Delay: 500 * time.Millisecond, Sleep: s.sleep},
		func(context.Context, int) error {
			calls++
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, attempts, 1)
	assert.Empty(t, s.waits)
}

func TestDo_BoundedWithFixedDelay(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	boom := errors.New("boom")
	attempts, err := retry.Do(context.Background(), retry.Policy{Attempts: 2, Delay: 500 * time.Millisecond, Sleep: s.sleep},
		func(_ context.Context, n int) error {
			calls++
			return boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
	require.Len(t, attempts, 2)
	assert.Equal(t, 2, attempts[1].Number)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, s.waits)
}

func TestDo_SecondAttemptSucceeds(t *testing.T) {
	s := &fakeSleeper{}
	attempts, err := retry.Do(context.Background(), retry.Policy{Attempts: 2, Delay: time.Second, Sleep: s.sleep},
		func(_ context.Context, n int) error {
			if n == 1 {
				return errors.New("transient")
			}
			return nil
		})

	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Error(t, attempts[0].Err)
	assert.NoError(t, attempts[1].Err)
}

func TestDo_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := retry.Do(ctx, retry.Policy{Attempts: 3, Delay: time.Hour},
		func(context.Context, int) error {
			calls++
			cancel()
			return errors.New("fail")
		})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, attempts, 1)
}

func TestTimerSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, retry.TimerSleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
