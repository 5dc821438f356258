package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// dispatcher runs provider operations through the shared retry protocol.
// Attempts are numbered from 1. Transport and 500/502/503 failures back off
// linearly (attempt seconds), 429 backs off at attempt*2 seconds, and
// authentication, other upstream statuses, and malformed responses surface
// immediately. The wait is a blocking sleep scoped to the in-flight call;
// no locks are held across it, so concurrent calls on the same client do
// not interfere.
type dispatcher struct {
	maxAttempts int
	// sleep is swapped out in tests; the default honors ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

func newDispatcher(retryAttempts int) dispatcher {
	if retryAttempts < 1 {
		retryAttempts = 1
	}
	return dispatcher{maxAttempts: retryAttempts, sleep: ctxSleep}
}

// do invokes op until it succeeds, fails terminally, or the attempt budget
// is exhausted. The final error is the classified ProviderError from the
// last attempt.
func (d dispatcher) do(ctx context.Context, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var pe *ProviderError
		if !errors.As(err, &pe) || !pe.IsRetryable() || attempt >= d.maxAttempts {
			return err
		}

		if serr := d.sleep(ctx, backoff(pe.Type, attempt)); serr != nil {
			return fmt.Errorf("canceled while waiting to retry: %w", serr)
		}
	}
}

// backoff returns the wait before the next attempt. Rate-limit responses
// wait twice as long as transport and server failures so a throttling
// upstream gets more room.
func backoff(t ErrorType, attempt int) time.Duration {
	base := time.Duration(attempt) * time.Second
	if t == ErrorTypeRateLimit {
		return 2 * base
	}
	return base
}

// ctxSleep blocks for d or until ctx is done, whichever comes first.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
