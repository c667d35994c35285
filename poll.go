package main

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// errNotReady is returned by a poll check to ask for another attempt.
	errNotReady = errors.New("condition not met yet")
	// errPollTimeout means the deadline passed before the check succeeded.
	errPollTimeout = errors.New("poll deadline exceeded")
)

// pollUntil runs check every interval until it returns nil, the timeout
// elapses, or ctx is done. The check always runs at least once; timeout <= 0
// means exactly once. A check wrapped in backoff.Permanent aborts the poll
// with that error.
func pollUntil(ctx context.Context, interval, timeout time.Duration, check func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		err := check(ctx)
		if errors.Is(err, errNotReady) {
			return errPollTimeout
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = interval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = timeout
	b.Reset()

	err := backoff.Retry(func() error {
		return check(ctx)
	}, backoff.WithContext(b, ctx))
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, errNotReady):
		return errPollTimeout
	default:
		return err
	}
}
