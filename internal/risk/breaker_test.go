package risk

import (
	"testing"
	"time"
)

func newTestBreaker(balance float64) *Breaker {
	return New(Options{
		InitialBalance:    balance,
		DailyLossLimitPct: 0.05,
		MaxDrawdownPct:    0.15,
		RecoveryPct:       0.10,
	})
}

func TestTradingAllowed_FreshAccount(t *testing.T) {
	b := newTestBreaker(10)
	if !b.TradingAllowed() {
		t.Fatal("fresh account must be allowed to trade")
	}
}

func TestDailyLossLimitHalts(t *testing.T) {
	b := newTestBreaker(10)

	// 5% of the 10 SOL day-start balance is 0.5.
	b.OnRealizedPnL(-0.49)
	if !b.TradingAllowed() {
		t.Fatal("loss below limit must not halt")
	}

	b.OnRealizedPnL(-0.02)
	if b.TradingAllowed() {
		t.Fatal("daily loss beyond 5% must halt trading")
	}
}

func TestOnNewDayResetsDailyPnLOnly(t *testing.T) {
	b := newTestBreaker(10)
	b.OnRealizedPnL(-0.6) // past the daily limit
	if b.TradingAllowed() {
		t.Fatal("expected daily-loss halt")
	}

	b.OnNewDay()

	st := b.Snapshot()
	if st.DailyPnL != 0 {
		t.Errorf("daily pnl = %v after rollover, want 0", st.DailyPnL)
	}
	if st.PeakBalance != 10 {
		t.Errorf("peak balance = %v, want preserved 10", st.PeakBalance)
	}
	if !b.TradingAllowed() {
		t.Error("daily-loss halt must clear on new day")
	}
}

func TestDrawdownHysteresis(t *testing.T) {
	b := newTestBreaker(100)

	// Drop to 15% drawdown: pause latches.
	b.OnRealizedPnL(-15)
	b.OnNewDay() // isolate drawdown from the daily loss gate
	if b.TradingAllowed() {
		t.Fatal("15%% drawdown must pause trading")
	}

	// Partial recovery to 12% drawdown: still paused (hysteresis).
	b.OnRealizedPnL(3)
	b.OnNewDay()
	if b.TradingAllowed() {
		t.Fatal("12%% drawdown with latched pause must stay paused")
	}

	// Recovery to exactly 10%: resumes.
	b.OnRealizedPnL(2)
	b.OnNewDay()
	if !b.TradingAllowed() {
		t.Fatal("drawdown at recovery threshold must resume trading")
	}

	// Dropping again to 12% after release does not re-pause below max.
	b.OnRealizedPnL(-2)
	b.OnNewDay()
	if !b.TradingAllowed() {
		t.Fatal("12%% drawdown without a latch must not pause")
	}
}

func TestDrawdownPauseSurvivesNewDay(t *testing.T) {
	b := newTestBreaker(100)
	b.OnRealizedPnL(-20)
	b.OnNewDay()
	if b.TradingAllowed() {
		t.Fatal("20%% drawdown must remain paused across day rollover")
	}
}

func TestPeakBalanceTracksHighs(t *testing.T) {
	b := newTestBreaker(10)
	b.OnRealizedPnL(5)
	b.OnRealizedPnL(-2)

	st := b.Snapshot()
	if st.PeakBalance != 15 {
		t.Errorf("peak = %v, want 15", st.PeakBalance)
	}
	if st.Balance != 13 {
		t.Errorf("balance = %v, want 13", st.Balance)
	}
}

func TestAutomaticDayRollover(t *testing.T) {
	current := time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	b := New(Options{
		InitialBalance:    10,
		DailyLossLimitPct: 0.05,
		MaxDrawdownPct:    0.15,
		RecoveryPct:       0.10,
		Now:               func() time.Time { return current },
	})

	b.OnRealizedPnL(-0.6)
	if b.TradingAllowed() {
		t.Fatal("expected daily-loss halt before midnight")
	}

	// Cross midnight: the gate re-opens without an explicit OnNewDay call.
	current = current.Add(2 * time.Hour)
	if !b.TradingAllowed() {
		t.Fatal("daily loss must reset after UTC midnight")
	}
}

func TestSnapshotHaltedFlag(t *testing.T) {
	b := newTestBreaker(100)
	if b.Snapshot().Halted {
		t.Error("fresh account must not report halted")
	}

	b.OnRealizedPnL(-20)
	if !b.Snapshot().Halted {
		t.Error("20%% drawdown must report halted")
	}
}
