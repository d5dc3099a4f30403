package retry

import (
	"context"
	"time"
)

// OnRetry is invoked before each backoff wait with the attempt that just
// failed, the wait about to be taken, and the error that caused it.
type OnRetry func(attempt int, wait time.Duration, err error)

// Policy describes a bounded retry schedule with exponential backoff.
// The zero value retries nothing; use Default for the standard schedule.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Default is the schedule applied to upstream API calls: three attempts
// with waits of 2s and 4s between them.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Backoff returns the wait after the given 1-based failed attempt:
// BaseDelay doubled for every prior failure.
func (p Policy) Backoff(attempt int) time.Duration {
	wait := p.BaseDelay
	for i := 1; i < attempt; i++ {
		wait *= 2
	}
	return wait
}

// Do runs op until it succeeds or MaxAttempts is exhausted, sleeping the
// backoff schedule between attempts. The context cancels waits; a cancelled
// context returns ctx.Err. On exhaustion the last error from op is returned.
func (p Policy) Do(ctx context.Context, op func() error, onRetry OnRetry) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = op(); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, lastErr)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
