// Package retry provides a bounded retry helper with linear backoff for
// external tool invocations.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds a retried operation. MaxRetries counts re-executions, so the
// total number of attempts is MaxRetries+1. Backoff is linear: the sleep
// before attempt n+1 is Delay*n.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
}

// Event describes one failed attempt that will be retried.
type Event struct {
	Label         string    `json:"label"`
	Attempt       int       `json:"attempt"`
	TotalAttempts int       `json:"totalAttempts"`
	Error         string    `json:"error"`
	At            time.Time `json:"at"`
}

// Do runs fn until it succeeds or the attempt budget is exhausted. Attempts
// execute strictly sequentially. Before each backoff sleep the observer is
// invoked with the failed attempt; the final attempt's failure is returned,
// not reported. fn receives the 1-based attempt number and the total budget
// and is expected to be idempotent.
func Do[T any](ctx context.Context, label string, policy Policy, fn func(attempt, total int) (T, error), onRetry func(Event)) (T, int, error) {
	var zero T
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	total := policy.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		result, err := fn(attempt, total)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if attempt == total {
			break
		}
		if onRetry != nil {
			onRetry(Event{
				Label:         label,
				Attempt:       attempt,
				TotalAttempts: total,
				Error:         err.Error(),
				At:            time.Now().UTC(),
			})
		}
		if err := sleep(ctx, policy.Delay*time.Duration(attempt)); err != nil {
			return zero, attempt, err
		}
	}

	return zero, total, fmt.Errorf("%s failed after %d attempt(s): %w", label, total, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
