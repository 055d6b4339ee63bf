package domain

import "time"

// RiskState is a read-only view of the circuit breaker's accounting.
type RiskState struct {
	Balance         float64 `json:"balance"`
	PeakBalance     float64 `json:"peak_balance"`
	DayStartBalance float64 `json:"day_start_balance"`
	DailyPnL        float64 `json:"daily_pnl"`
	Drawdown        float64 `json:"drawdown"` // (peak - balance) / peak
	Halted          bool    `json:"halted"`
}

// StatusSnapshot is a consistent point-in-time view of the engine, safe to
// expose over any reporting channel. It is assembled copy-on-read and never
// holds mutation locks while serialized.
type StatusSnapshot struct {
	Uptime        time.Duration `json:"-"`
	UptimeSeconds float64       `json:"uptime_seconds"`

	Balance     float64 `json:"balance_sol"`
	PeakBalance float64 `json:"peak_balance_sol"`

	OpenPositions int `json:"positions_open"`
	TotalTrades   int `json:"total_trades"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`

	WinRatePct float64 `json:"win_rate_pct"`

	TotalPnLSOL float64 `json:"total_pnl_sol"`
	DailyPnLSOL float64 `json:"daily_pnl_sol"`

	TradingHalted bool `json:"trading_halted"`
}
