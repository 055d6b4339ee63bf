// Package admission decides whether a scored candidate may become a
// position and at what size. The controller is a pure decision function
// over the current account state; opening the position is the caller's
// ledger operation.
package admission

import (
	"fmt"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
)

// Gate is the risk circuit breaker surface the controller consults.
type Gate interface {
	TradingAllowed() bool
	Balance() float64
}

// OpenSet reports the ledger's open-position state.
type OpenSet interface {
	OpenCount() int
	HasOpen(mint string) bool
}

// Stable rejection codes, used as metric labels.
const (
	RejectScore      = "quality_score"
	RejectHalted     = "halted"
	RejectConcurrent = "max_concurrent"
	RejectDuplicate  = "duplicate_mint"
	RejectSize       = "position_size"
	RejectNoPrice    = "no_price"
	RejectRewardRisk = "reward_risk"
)

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Approved bool

	// SizeSOL is the approved capital, set only when Approved.
	SizeSOL float64
	// StopPrice is the derived hard-stop price, set only when Approved.
	StopPrice float64

	// RejectCode is the stable code of the failed check; RejectReason
	// explains it. Rejections are normal outcomes, not errors.
	RejectCode   string
	RejectReason string
}

// Controller evaluates candidates against risk limits and account state.
type Controller struct {
	cfg  config.Config
	gate Gate
	open OpenSet
}

// New creates a Controller.
func New(cfg config.Config, gate Gate, open OpenSet) *Controller {
	return &Controller{cfg: cfg, gate: gate, open: open}
}

// Evaluate runs the admission checks in order, short-circuiting on the
// first failure:
//
//  1. quality score threshold
//  2. circuit breaker gate
//  3. concurrent position limit
//  4. duplicate mint guard
//  5. position sizing against risk limits and available capital
//  6. reward/risk against the first take-profit target
func (c *Controller) Evaluate(cand domain.TokenCandidate, score int, availableCapital float64) Decision {
	if score < c.cfg.MinQualityScore {
		return rejected(RejectScore, "quality score %d below threshold %d", score, c.cfg.MinQualityScore)
	}

	if !c.gate.TradingAllowed() {
		return rejected(RejectHalted, "circuit breaker halted trading")
	}

	if c.open.OpenCount() >= c.cfg.MaxConcurrent {
		return rejected(RejectConcurrent, "max concurrent positions (%d) reached", c.cfg.MaxConcurrent)
	}

	if c.open.HasOpen(cand.Mint) {
		return rejected(RejectDuplicate, "already holding position in %s", cand.Mint)
	}

	balance := c.gate.Balance()
	size := min(
		c.cfg.RiskPerTradePct*balance,
		c.cfg.MaxPositionSizePct*balance,
		availableCapital,
	)
	if size < c.cfg.MinTradeSOL {
		return rejected(RejectSize, "position size %.4f SOL below minimum %.4f", size, c.cfg.MinTradeSOL)
	}

	if cand.PriceSOL <= 0 {
		return rejected(RejectNoPrice, "candidate has no price")
	}

	stopPrice := cand.PriceSOL * (1 - c.cfg.StopLossPct)
	risk := cand.PriceSOL - stopPrice
	reward := cand.PriceSOL*c.cfg.FirstTarget() - cand.PriceSOL

	if risk <= 0 {
		return rejected(RejectNoPrice, "degenerate stop for price %.10f", cand.PriceSOL)
	}
	if rr := reward / risk; rr < c.cfg.MinRewardRisk {
		return rejected(RejectRewardRisk, "reward/risk %.2f below minimum %.2f", rr, c.cfg.MinRewardRisk)
	}

	return Decision{
		Approved:  true,
		SizeSOL:   size,
		StopPrice: stopPrice,
	}
}

func rejected(code, format string, args ...any) Decision {
	return Decision{RejectCode: code, RejectReason: fmt.Sprintf(format, args...)}
}
