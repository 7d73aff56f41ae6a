package pipeline

import (
	"context"
	"errors"
	"time"
)

// callWithRetry runs fn up to 1+maxRetries times with exponential backoff.
// It gives up early when the context ends, the run requests cancellation,
// or fn reports a PermanentError; otherwise the final failure is wrapped in
// a TransientError for the failure record.
func callWithRetry[T any](ctx context.Context, op string, maxRetries int, baseDelay time.Duration, cancelled func() bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := 0
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			if cancelled != nil && cancelled() {
				break
			}
		}

		attempts++
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, &TransientError{Op: op, Attempts: attempts, Err: lastErr}
}
