// Package risk implements the account-wide circuit breaker: daily loss
// limit and drawdown pause with hysteresis. The breaker never returns
// errors; it only degrades the admission gate.
package risk

import (
	"sync"
	"time"

	"pump-sniper/internal/domain"
)

// Breaker tracks account balance, peak balance and daily P&L, and exposes
// the trading-allowed gate consulted by the admission controller. It is
// safe for concurrent use from the candidate and price loops.
type Breaker struct {
	mu sync.Mutex

	balance         float64
	peakBalance     float64
	dayStartBalance float64
	dailyPnL        float64
	day             time.Time // start of the current trading day (UTC)

	// drawdownPaused latches at maxDrawdownPct and releases only once
	// drawdown falls to recoveryPct or below.
	drawdownPaused bool

	dailyLossLimitPct float64
	maxDrawdownPct    float64
	recoveryPct       float64

	now func() time.Time
}

// Options configures a Breaker.
type Options struct {
	InitialBalance    float64
	DailyLossLimitPct float64
	MaxDrawdownPct    float64
	RecoveryPct       float64

	// Now overrides the clock; nil means time.Now. Used by tests.
	Now func() time.Time
}

// New creates a Breaker starting from the given balance.
func New(opts Options) *Breaker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	b := &Breaker{
		balance:           opts.InitialBalance,
		peakBalance:       opts.InitialBalance,
		dayStartBalance:   opts.InitialBalance,
		dailyLossLimitPct: opts.DailyLossLimitPct,
		maxDrawdownPct:    opts.MaxDrawdownPct,
		recoveryPct:       opts.RecoveryPct,
		now:               now,
	}
	b.day = startOfDay(now())
	return b
}

// OnRealizedPnL applies a realized balance delta. Positive deltas may raise
// the peak balance; every delta counts toward the daily P&L.
func (b *Breaker) OnRealizedPnL(delta float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDayLocked()

	b.balance += delta
	b.dailyPnL += delta
	if b.balance > b.peakBalance {
		b.peakBalance = b.balance
	}
}

// TradingAllowed reports whether new admissions may proceed. It is false
// when the daily loss limit is breached or while the drawdown pause is
// latched.
func (b *Breaker) TradingAllowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rollDayLocked()

	if b.dailyPnL <= -(b.dailyLossLimitPct * b.dayStartBalance) {
		return false
	}

	dd := b.drawdownLocked()
	if b.drawdownPaused {
		if dd <= b.recoveryPct {
			b.drawdownPaused = false
		} else {
			return false
		}
	} else if dd >= b.maxDrawdownPct {
		b.drawdownPaused = true
		return false
	}

	return true
}

// OnNewDay resets the daily P&L. Peak balance and the drawdown pause latch
// survive the rollover.
func (b *Breaker) OnNewDay() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dailyPnL = 0
	b.dayStartBalance = b.balance
	b.day = startOfDay(b.now())
}

// Balance returns the current account balance.
func (b *Breaker) Balance() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

// Snapshot returns a copy of the breaker state for reporting.
func (b *Breaker) Snapshot() domain.RiskState {
	b.mu.Lock()
	defer b.mu.Unlock()

	dd := b.drawdownLocked()
	halted := b.dailyPnL <= -(b.dailyLossLimitPct*b.dayStartBalance) ||
		b.drawdownPaused ||
		dd >= b.maxDrawdownPct

	return domain.RiskState{
		Balance:         b.balance,
		PeakBalance:     b.peakBalance,
		DayStartBalance: b.dayStartBalance,
		DailyPnL:        b.dailyPnL,
		Drawdown:        dd,
		Halted:          halted,
	}
}

// drawdownLocked computes (peak - balance) / peak. Caller holds b.mu.
func (b *Breaker) drawdownLocked() float64 {
	if b.peakBalance <= 0 {
		return 0
	}
	return (b.peakBalance - b.balance) / b.peakBalance
}

// rollDayLocked resets the daily P&L when the UTC day has changed since the
// last accounting. Caller holds b.mu.
func (b *Breaker) rollDayLocked() {
	today := startOfDay(b.now())
	if today.After(b.day) {
		b.dailyPnL = 0
		b.dayStartBalance = b.balance
		b.day = today
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
