package domain

import (
	"fmt"
	"time"
)

// ClosedTrade is one entry in the append-only trade log. It is immutable
// once written; a partial exit does not produce a ClosedTrade, only the
// terminal close of the remaining quantity does.
type ClosedTrade struct {
	TradeID string
	Mint    string
	Symbol  string

	EntryPrice float64
	ExitPrice  float64

	PnLPct float64 // realized P&L on entry capital, in percent
	PnLSOL float64 // realized P&L in SOL, partial exits included

	Reason string // exit reason code

	EntryTime    time.Time
	ExitTime     time.Time
	HoldDuration time.Duration
}

// Win reports whether the trade realized a profit.
func (t *ClosedTrade) Win() bool {
	return t.PnLSOL > 0
}

// Exit reason codes.
const (
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonMaxHoldTime  = "MAX_HOLD_TIME"
	ExitReasonTrailingStop = "TRAILING_STOP"
	ExitReasonManual       = "MANUAL"
	ExitReasonShutdown     = "SHUTDOWN"
)

// PartialTPReason returns the exit reason code for a take-profit level,
// e.g. PARTIAL_TP_2 for the 2.0x level.
func PartialTPReason(level float64) string {
	return fmt.Sprintf("PARTIAL_TP_%g", level)
}
