package httpx

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy wraps an external call with bounded attempts and exponential
// backoff. The delay before attempt n (zero-based) is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep is swappable in tests. nil means time.Sleep.
	Sleep func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Do runs fn until it succeeds, the retryable predicate rejects the error, or
// MaxAttempts is exhausted. The last error is returned as-is.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(attempt); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := p.BaseDelay * (1 << attempt)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		// A server-provided Retry-After overrides the computed backoff and
		// sleeps exactly as instructed, still bounded by MaxDelay.
		var hinter RetryAfterHinter
		if errors.As(err, &hinter) {
			if hint := hinter.RetryAfterHint(); hint > 0 {
				if p.MaxDelay > 0 && hint > p.MaxDelay {
					hint = p.MaxDelay
				}
				sleep(hint)
				continue
			}
		}
		sleep(JitterSleep(delay))
	}
	return err
}
