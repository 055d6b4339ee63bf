// Package executor submits buy and sell orders to an execution backend.
// The ledger treats execution as the source of truth: a position only
// changes state after the executor reports the order outcome.
package executor

import "context"

// Side is the direction of a trade request.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the outcome of a submitted trade request.
type Status string

const (
	// StatusSuccess means the order was filled.
	StatusSuccess Status = "success"
	// StatusQueued means the order was accepted but awaits confirmation,
	// for example manual approval in the wallet. The caller must not
	// assume a fill.
	StatusQueued Status = "queued"
	// StatusFailed means the order was rejected or errored.
	StatusFailed Status = "failed"
)

// TradeRequest describes an order to submit.
type TradeRequest struct {
	Side      Side    `json:"side"`
	Mint      string  `json:"mint"`
	Symbol    string  `json:"symbol"`
	AmountSOL float64 `json:"amount_sol"` // buy side: SOL to spend
	Tokens    float64 `json:"tokens"`     // sell side: tokens to sell
	Price     float64 `json:"price"`      // observed price at submission

	// SlippagePct is the tolerated execution slippage in percent.
	SlippagePct float64 `json:"slippage_pct,omitempty"`
}

// TradeResult is the reported outcome of a trade request.
type TradeResult struct {
	Status    Status `json:"status"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Executor submits trade requests. Submit returns an error only for
// transport or protocol failures; a rejected order is a TradeResult
// with StatusFailed.
type Executor interface {
	Submit(ctx context.Context, req TradeRequest) (TradeResult, error)
}
