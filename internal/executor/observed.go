package executor

import "context"

// Observed wraps an Executor and reports every submission outcome to a
// callback. The callback sees the final result after any inner retry
// policy has run.
type Observed struct {
	inner   Executor
	observe func(TradeResult, error)
}

var _ Executor = (*Observed)(nil)

// NewObserved wraps inner with an observation callback. A nil callback
// makes the wrapper transparent.
func NewObserved(inner Executor, observe func(TradeResult, error)) *Observed {
	return &Observed{inner: inner, observe: observe}
}

// Submit forwards to the wrapped executor and reports the outcome.
func (o *Observed) Submit(ctx context.Context, req TradeRequest) (TradeResult, error) {
	result, err := o.inner.Submit(ctx, req)
	if o.observe != nil {
		o.observe(result, err)
	}
	return result, err
}
