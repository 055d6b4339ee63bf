package executor

import (
	"context"
	"time"
)

// Retry wraps an Executor and resubmits failed orders. Success and
// queued results return immediately; only explicit failures and
// transport errors are retried.
type Retry struct {
	inner       Executor
	maxAttempts int
	delay       time.Duration
}

// NewRetry creates a retrying executor. maxAttempts is the total number
// of submissions, minimum 1.
func NewRetry(inner Executor, maxAttempts int, delay time.Duration) *Retry {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retry{inner: inner, maxAttempts: maxAttempts, delay: delay}
}

// Compile-time interface check.
var _ Executor = (*Retry)(nil)

// Submit forwards the request, retrying failures up to maxAttempts.
func (r *Retry) Submit(ctx context.Context, req TradeRequest) (TradeResult, error) {
	var (
		result  TradeResult
		lastErr error
	)

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return TradeResult{}, ctx.Err()
			case <-time.After(r.delay):
			}
		}

		result, lastErr = r.inner.Submit(ctx, req)
		if lastErr != nil {
			continue
		}
		if result.Status != StatusFailed {
			return result, nil
		}
	}

	if lastErr != nil {
		return TradeResult{}, lastErr
	}
	return result, nil
}
