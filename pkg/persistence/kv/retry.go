package kv

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffFunc returns the delay after the given zero-based failed attempt.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff waits base * 2^attempt.
func ExponentialBackoff(base time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return base << attempt
	}
}

// RetryPolicy bounds how a write is re-run after a failure.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// DefaultRetryPolicy runs a write up to 3 times, waiting 100ms, then 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(100 * time.Millisecond),
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

type funcBackOff struct {
	fn      BackoffFunc
	attempt int
}

func (b *funcBackOff) NextBackOff() time.Duration {
	delay := b.fn(b.attempt)
	b.attempt++

	return delay
}

func (b *funcBackOff) Reset() {
	b.attempt = 0
}

// Retry runs operation until it succeeds, returns a Permanent error, or
// maxAttempts is exhausted, sleeping backoffFn(attempt) between attempts.
// The last observed error is returned. notify, when set, is called before
// each sleep.
func Retry[T any](ctx context.Context, operation func() (T, error), maxAttempts int, backoffFn BackoffFunc, notify func(err error, delay time.Duration)) (T, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(&funcBackOff{fn: backoffFn}),
		backoff.WithMaxTries(uint(maxAttempts)),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	return backoff.Retry[T](ctx, backoff.Operation[T](operation), opts...)
}
