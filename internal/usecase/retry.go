package usecase

import (
	"context"
	"time"

	"adspace-booking/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
)

// maxRetries bounds the retries of idempotent steps: gateway lookups and
// local updates recorded against a stable refund id.
const maxRetries = 3

// retryMaxElapsed caps the time one retried step spends in backoff.
const retryMaxElapsed = 10 * time.Second

type retryPolicy func() backoff.BackOff

func defaultRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = retryMaxElapsed
	return backoff.WithMaxRetries(b, maxRetries)
}

// retryWithData runs op until it succeeds, fails with an error retryable
// rejects, or the policy gives up.
func retryWithData[T any](ctx context.Context, policy retryPolicy, retryable func(error) bool, op func() (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithContext(policy(), ctx))
}

func isGatewayFailure(err error) bool {
	return apperror.KindOf(err) == apperror.KindPaymentGateway
}

// isTransient matches storage failures that carry no domain kind.
func isTransient(err error) bool {
	return apperror.KindOf(err) == apperror.KindInternal
}
