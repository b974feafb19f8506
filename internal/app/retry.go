package app

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trivia-duel/internal/domain"
)

// RetryPolicy bounds how storage calls are retried before the caller sees
// domain.ErrUnavailable.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy retries three times starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Initial: 50 * time.Millisecond, Max: time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		b.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		b.MaxInterval = p.Max
	}
	b.MaxElapsedTime = 0
	attempts := p.Attempts
	if attempts < 0 {
		attempts = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts)), ctx)
}

// retry runs fn until it succeeds, fails with a typed domain error, or the
// policy is exhausted. Untyped failures are logged and hidden behind
// domain.ErrUnavailable.
func retry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	var out T
	err := backoff.Retry(func() error {
		v, err := fn()
		if err != nil {
			if domain.IsTyped(err) {
				return backoff.Permanent(err)
			}
			log.Printf("[retry] %s: %v", op, err)
			return err
		}
		out = v
		return nil
	}, p.backOff(ctx))
	if err != nil {
		if domain.IsTyped(err) {
			return out, err
		}
		log.Printf("[retry] %s gave up: %v", op, err)
		return out, domain.ErrUnavailable
	}
	return out, nil
}

func retryErr(ctx context.Context, p RetryPolicy, op string, fn func() error) error {
	_, err := retry(ctx, p, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
