package domain

import "time"

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	// PositionOpen means the position holds tokens and is monitored for exits.
	PositionOpen PositionStatus = "OPEN"
	// PositionClosed is terminal; the position has moved to the trade log.
	PositionClosed PositionStatus = "CLOSED"
)

// Position is a live holding in a single token. It is owned exclusively by
// the ledger: created on an approved admission, mutated only through ledger
// operations, and destroyed on any terminal exit.
type Position struct {
	TradeID string
	Mint    string
	Symbol  string

	EntryPrice float64 // SOL per token at entry
	EntrySOL   float64 // capital committed at entry
	Tokens     float64 // remaining token quantity after partial exits

	EntryTime    time.Time
	HighestPrice float64 // watermark since entry, drives the trailing stop

	// RealizedSOL accumulates proceeds from partial exits. The final
	// close adds the last leg and moves the total to the trade log.
	RealizedSOL float64

	// TriggeredLevels records take-profit multiples that already fired.
	// A level fires at most once over the position's lifetime.
	TriggeredLevels map[float64]bool

	// TrailingArmed is set once the profit multiple first reaches the
	// activation threshold. Arming is monotonic; it never disarms.
	TrailingArmed bool

	// ExitPending counts executor submissions that returned queued/failed
	// and are awaiting retry or manual intervention.
	ExitPending int

	Status PositionStatus
}

// ProfitMultiple returns price relative to entry (2.0 = doubled).
func (p *Position) ProfitMultiple(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return price / p.EntryPrice
}

// LevelTriggered reports whether a take-profit multiple already fired.
func (p *Position) LevelTriggered(level float64) bool {
	return p.TriggeredLevels[level]
}
