package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs op with exponential backoff until it succeeds, returns an error
// retryable rejects, maxElapsed passes, or ctx is done. Only idempotent
// operations may be retried.
func Retry(ctx context.Context, maxElapsed time.Duration, retryable func(error) bool, op func() error) error {
	if maxElapsed <= 0 {
		return op()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
