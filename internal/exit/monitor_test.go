package exit

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
	"pump-sniper/internal/executor"
	"pump-sniper/internal/ledger"
	"pump-sniper/internal/storage/memory"
)

type fixture struct {
	monitor *Monitor
	ledger  *ledger.Ledger
	trades  *memory.ClosedTradeStore
	exec    *executor.PaperExecutor
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	exec := executor.NewPaperExecutor()
	trades := memory.NewClosedTradeStore()
	discard := log.New(io.Discard, "", 0)

	book := ledger.New(ledger.Options{
		Executor:   exec,
		TradeStore: trades,
		Logger:     discard,
		Now:        func() time.Time { return clock },
	})
	monitor := New(Options{
		Book:   book,
		Config: config.Default(),
		Logger: discard,
		Now:    func() time.Time { return clock },
	})
	return &fixture{monitor: monitor, ledger: book, trades: trades, exec: exec, clock: &clock}
}

func (f *fixture) open(t *testing.T, mint string, price, sizeSOL float64) {
	t.Helper()
	_, err := f.ledger.Open(context.Background(), domain.TokenCandidate{
		Mint: mint, Symbol: "TEST", PriceSOL: price,
	}, sizeSOL)
	require.NoError(t, err)
}

func (f *fixture) lastTrade(t *testing.T) *domain.ClosedTrade {
	t.Helper()
	all, err := f.trades.GetAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestOnPriceTick_IgnoresUnknownMint(t *testing.T) {
	f := newFixture(t)

	f.monitor.OnPriceTick(context.Background(), "mint-none", 1.0)
	assert.Empty(t, f.exec.Requests())
}

func TestOnPriceTick_HardStop(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)

	// Default stop is 15%; 0.86 holds, 0.85 closes.
	f.monitor.OnPriceTick(context.Background(), "mint-aaa", 0.86)
	assert.True(t, f.ledger.HasOpen("mint-aaa"))

	f.monitor.OnPriceTick(context.Background(), "mint-aaa", 0.85)
	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	assert.Equal(t, domain.ExitReasonStopLoss, f.lastTrade(t).Reason)
}

func TestOnPriceTick_MaxHoldTime(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)

	*f.clock = f.clock.Add(4*time.Hour - time.Second)
	f.monitor.OnPriceTick(context.Background(), "mint-aaa", 1.1)
	assert.True(t, f.ledger.HasOpen("mint-aaa"))

	*f.clock = f.clock.Add(time.Second)
	f.monitor.OnPriceTick(context.Background(), "mint-aaa", 1.1)
	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	assert.Equal(t, domain.ExitReasonMaxHoldTime, f.lastTrade(t).Reason)
}

// Scenario: entry 1.0, ticks [1.0, 2.1, 0.84]. The second tick fires
// the 2.0x level once; the third hits the hard stop and closes the
// remaining 75% without re-firing the level.
func TestOnPriceTick_PartialThenStop(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.0)
	require.True(t, f.ledger.HasOpen("mint-aaa"))

	f.monitor.OnPriceTick(ctx, "mint-aaa", 2.1)
	pos := f.ledger.Get("mint-aaa")
	require.NotNil(t, pos)
	assert.True(t, pos.LevelTriggered(2.0))
	assert.InDelta(t, 0.75, pos.Tokens, 1e-12)

	f.monitor.OnPriceTick(ctx, "mint-aaa", 0.84)
	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	assert.Equal(t, domain.ExitReasonStopLoss, f.lastTrade(t).Reason)

	// One buy, one partial sell, one final sell.
	var sells int
	for _, req := range f.exec.Requests() {
		if req.Side == executor.SideSell {
			sells++
		}
	}
	assert.Equal(t, 2, sells)
}

func TestOnPriceTick_GapFiresMultipleLevels(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)

	// Gap straight past 2x and 5x.
	f.monitor.OnPriceTick(context.Background(), "mint-aaa", 6.0)

	pos := f.ledger.Get("mint-aaa")
	require.NotNil(t, pos)
	assert.True(t, pos.LevelTriggered(2.0))
	assert.True(t, pos.LevelTriggered(5.0))
	assert.False(t, pos.LevelTriggered(10.0))
	// 25% + 30% of the original quantity sold.
	assert.InDelta(t, 0.45, pos.Tokens, 1e-12)
}

func TestOnPriceTick_LevelFiresOncePerLifetime(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	// Dip stays above the trailing line (peak 2.1, trail 10% -> 1.89)
	// so the position survives and 2.0x must not fire again.
	f.monitor.OnPriceTick(ctx, "mint-aaa", 2.1)
	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.95)
	f.monitor.OnPriceTick(ctx, "mint-aaa", 2.2)

	pos := f.ledger.Get("mint-aaa")
	require.NotNil(t, pos)
	assert.InDelta(t, 0.75, pos.Tokens, 1e-12)
}

// Scenario: armed at 1.5x, peak 3.0, trail 10% -> closes at 2.7.
func TestOnPriceTick_TrailingStop(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.5)
	pos := f.ledger.Get("mint-aaa")
	require.NotNil(t, pos)
	assert.True(t, pos.TrailingArmed)

	f.monitor.OnPriceTick(ctx, "mint-aaa", 3.0)
	require.True(t, f.ledger.HasOpen("mint-aaa"))

	// 2.71 is above the 2.7 retracement line.
	f.monitor.OnPriceTick(ctx, "mint-aaa", 2.71)
	assert.True(t, f.ledger.HasOpen("mint-aaa"))

	f.monitor.OnPriceTick(ctx, "mint-aaa", 2.7)
	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	assert.Equal(t, domain.ExitReasonTrailingStop, f.lastTrade(t).Reason)
}

func TestOnPriceTick_TrailingNeverFiresBeforeActivation(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	// Climbs but never reaches 1.5x, then retraces more than 10% from
	// peak while staying above the hard stop.
	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.4)
	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.1)

	pos := f.ledger.Get("mint-aaa")
	require.NotNil(t, pos)
	assert.False(t, pos.TrailingArmed)
}

func TestOnPriceTick_ArmingIsMonotonic(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.5)
	require.True(t, f.ledger.Get("mint-aaa").TrailingArmed)

	// Dipping below the activation multiple does not disarm. Peak is
	// 1.5, so the 10% line is 1.35; 1.36 survives, 1.35 closes.
	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.36)
	require.True(t, f.ledger.HasOpen("mint-aaa"))
	assert.True(t, f.ledger.Get("mint-aaa").TrailingArmed)

	f.monitor.OnPriceTick(ctx, "mint-aaa", 1.35)
	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	assert.Equal(t, domain.ExitReasonTrailingStop, f.lastTrade(t).Reason)
}

func TestOnPriceTick_StopPriorityOverLadder(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	// Run the clock past max hold while price sits at a take-profit
	// level: the time exit wins and the level never fires.
	*f.clock = f.clock.Add(5 * time.Hour)
	f.monitor.OnPriceTick(ctx, "mint-aaa", 2.5)

	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	trade := f.lastTrade(t)
	assert.Equal(t, domain.ExitReasonMaxHoldTime, trade.Reason)

	var sells int
	for _, req := range f.exec.Requests() {
		if req.Side == executor.SideSell {
			sells++
		}
	}
	assert.Equal(t, 1, sells)
}

func TestOnPriceTick_FailedExitLeavesPositionForNextTick(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	ctx := context.Background()

	failSells := true
	f.exec.Outcome = func(req executor.TradeRequest) executor.TradeResult {
		if req.Side == executor.SideSell && failSells {
			return executor.TradeResult{Status: executor.StatusFailed, Message: "congestion"}
		}
		return executor.TradeResult{Status: executor.StatusSuccess, Signature: "sig"}
	}

	f.monitor.OnPriceTick(ctx, "mint-aaa", 0.8)
	require.True(t, f.ledger.HasOpen("mint-aaa"))

	failSells = false
	f.monitor.OnPriceTick(ctx, "mint-aaa", 0.8)
	assert.False(t, f.ledger.HasOpen("mint-aaa"))
	assert.Equal(t, domain.ExitReasonStopLoss, f.lastTrade(t).Reason)
}

func TestCloseAll_ClosesEverything(t *testing.T) {
	f := newFixture(t)
	f.open(t, "mint-aaa", 1.0, 1.0)
	f.open(t, "mint-bbb", 2.0, 1.0)

	closed := f.monitor.CloseAll(context.Background(), f.ledger.OpenPositions(),
		func(mint string) float64 { return 0 }, domain.ExitReasonShutdown)

	assert.Len(t, closed, 2)
	assert.Equal(t, 0, f.ledger.OpenCount())
	for _, trade := range closed {
		assert.Equal(t, domain.ExitReasonShutdown, trade.Reason)
	}
}
