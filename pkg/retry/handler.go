package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jimger/wizz-aycf-route-finder/pkg/failure"
	"github.com/jimger/wizz-aycf-route-finder/pkg/timeutil"
)

type retryable interface {
	IsRetryable() bool
}

// Retry executes fn up to MaxAttempts times, sleeping an exponential backoff with
// jitter between attempts through sleeper. Only errors reporting IsRetryable() == true
// are retried; any other error is returned unchanged. With MaxAttempts == 1 fn runs
// exactly once and its error is returned unchanged.
func Retry[T any](
	ctx context.Context,
	sleeper timeutil.Sleeper,
	retryParam RetryParam,
	fn func() (T, failure.ClassifiedError),
) (T, failure.ClassifiedError) {
	var zero T

	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{
			Message: "max attempt cannot be 0",
			Cause:   ErrZeroAttempt,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))
	var lastErr failure.ClassifiedError

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isErrorRetryable(err) || retryParam.MaxAttempts == 1 {
			return zero, err
		}
		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := timeutil.ExponentialBackoffDelay(attempt, retryParam.Jitter, rng, retryParam.BackoffParam)
		if sleepErr := sleeper.Sleep(ctx, delay); sleepErr != nil {
			return zero, &RetryError{
				Message: fmt.Sprintf("stopped after %d attempts: %v", attempt, sleepErr),
				Cause:   ErrInterrupted,
				Last:    lastErr,
			}
		}
	}

	return zero, &RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: true,
		Last:      lastErr,
	}
}

func isErrorRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
