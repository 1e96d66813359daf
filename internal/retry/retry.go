package retry

import (
	"context"
	"time"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy is a fixed-delay, bounded retry.
type Policy struct {
	Attempts int
	Delay    time.Duration
	Sleep    Sleeper // nil uses a timer
}

// Attempt records the outcome of one call.
type Attempt struct {
	Number int
	Err    error
}

// Do calls fn until it succeeds or the policy is exhausted. It returns every attempt's
// outcome and the last error (nil on success). Cancelling ctx stops between attempts.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) ([]Attempt, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = TimerSleep
	}

	outcomes := make([]Attempt, 0, attempts)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if i > 1 && p.Delay > 0 {
			if err := sleep(ctx, p.Delay); err != nil {
				return outcomes, lastErr
			}
		}
		lastErr = fn(ctx, i)
		outcomes = append(outcomes, Attempt{Number: i, Err: lastErr})
		if lastErr == nil {
			return outcomes, nil
		}
	}
	return outcomes, lastErr
}

func TimerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
