package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// PaperExecutor fills every order instantly at the requested price.
// It records submitted requests so tests and dry runs can inspect them.
type PaperExecutor struct {
	mu       sync.Mutex
	requests []TradeRequest
	seq      atomic.Uint64

	// Outcome overrides the default success result when set.
	Outcome func(req TradeRequest) TradeResult
}

// NewPaperExecutor creates a paper executor.
func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{}
}

// Compile-time interface check.
var _ Executor = (*PaperExecutor)(nil)

// Submit records the request and reports a simulated fill.
func (e *PaperExecutor) Submit(ctx context.Context, req TradeRequest) (TradeResult, error) {
	if err := ctx.Err(); err != nil {
		return TradeResult{}, err
	}

	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()

	if e.Outcome != nil {
		return e.Outcome(req), nil
	}

	return TradeResult{
		Status:    StatusSuccess,
		Signature: fmt.Sprintf("paper-%d", e.seq.Add(1)),
	}, nil
}

// Requests returns a copy of all submitted requests in order.
func (e *PaperExecutor) Requests() []TradeRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]TradeRequest, len(e.requests))
	copy(out, e.requests)
	return out
}
