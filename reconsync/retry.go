package reconsync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/reconsvc/reconerrors"
)

// RetryPolicy parameterizes the transient-transport retry wrapper
// described in §4.5 and §9: base 1s, factor 2, max 3 attempts by
// default, honoring an overall deadline.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Factor: 2}
}

// WithRetry calls fn up to MaxAttempts times with exponential backoff. If
// the next retry would exceed ctx's deadline, it fails immediately with
// SourceUnavailable instead of sleeping past the cycle deadline (§9:
// "Honour the cycle deadline").
func (p RetryPolicy) WithRetry(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			return reconerrors.NewSourceUnavailable(source, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return reconerrors.NewSourceUnavailable(source, ctx.Err())
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * p.Factor)
	}
	return reconerrors.NewSourceUnavailable(source, lastErr)
}
