package util

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how often and how quickly a failing call is repeated.
// Wait is the pause before the second attempt and doubles after every
// further failure, capped at MaxWait when set. Attempts <= 0 means a single
// attempt.
type RetryPolicy struct {
	Attempts int
	Wait     time.Duration
	MaxWait  time.Duration
}

// DefaultRetry is used for calls to external services during a run.
var DefaultRetry = RetryPolicy{Attempts: 3, Wait: 250 * time.Millisecond, MaxWait: 2 * time.Second}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry returns it without another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func (p RetryPolicy) delay(failures int) time.Duration {
	d := p.Wait
	for i := 1; i < failures && d > 0; i++ {
		d *= 2
		if p.MaxWait > 0 && d >= p.MaxWait {
			return p.MaxWait
		}
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		return p.MaxWait
	}
	return d
}

func stopRetry(err error) bool {
	var perm permanentError
	return errors.As(err, &perm) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Retry calls fn until it succeeds, the policy is exhausted or ctx is done.
// Context errors and errors marked with Permanent end the loop at once. The
// last error of fn is returned otherwise.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)

	var lastErr error
	for i := range attempts {
		if i > 0 {
			if d := p.delay(i); d > 0 {
				t := time.NewTimer(d)
				select {
				case <-ctx.Done():
					t.Stop()
					return zero, ctx.Err()
				case <-t.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if stopRetry(err) {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}

// RetryErr is Retry for calls without a result.
func RetryErr(ctx context.Context, p RetryPolicy, fn func(context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
