// Package exit evaluates open positions against the exit rules on every
// price tick. Rule priority is fixed: hard stop, then max hold time,
// then the take-profit ladder, then the trailing stop. A tick that hits
// the hard stop never also fires take-profit levels.
package exit

import (
	"context"
	"log"
	"time"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
)

// Book is the position access the monitor needs. Implemented by the
// ledger.
type Book interface {
	Get(mint string) *domain.Position
	ApplyPriceUpdate(mint string, price float64)
	ArmTrailing(mint string)
	PartialClose(ctx context.Context, mint string, level, sellFraction, price float64) error
	Close(ctx context.Context, mint string, price float64, reason string) (*domain.ClosedTrade, error)
}

// Monitor drives exits for open positions.
type Monitor struct {
	book   Book
	cfg    config.Config
	logger *log.Logger
	now    func() time.Time
}

// Options configures a Monitor.
type Options struct {
	Book   Book
	Config config.Config
	Logger *log.Logger

	// Now overrides the clock; nil means time.Now. Used by tests.
	Now func() time.Time
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		book:   opts.Book,
		cfg:    opts.Config,
		logger: logger,
		now:    now,
	}
}

// OnPriceTick evaluates one open position against the exit rules.
// Mints with no open position are ignored. A failed exit leaves the
// position open; the next tick re-evaluates it.
func (m *Monitor) OnPriceTick(ctx context.Context, mint string, price float64) {
	if price <= 0 {
		return
	}

	pos := m.book.Get(mint)
	if pos == nil {
		return
	}

	m.book.ApplyPriceUpdate(mint, price)
	if price > pos.HighestPrice {
		pos.HighestPrice = price
	}

	// 1. Hard stop.
	stopPrice := pos.EntryPrice * (1 - m.cfg.StopLossPct)
	if price <= stopPrice {
		m.close(ctx, mint, price, domain.ExitReasonStopLoss)
		return
	}

	// 2. Max hold time.
	if m.now().Sub(pos.EntryTime) >= m.cfg.MaxHoldTime.Std() {
		m.close(ctx, mint, price, domain.ExitReasonMaxHoldTime)
		return
	}

	// 3. Take-profit ladder, ascending. A gap past several thresholds
	// fires them all in one tick; each level at most once per position.
	multiple := pos.ProfitMultiple(price)
	for _, lvl := range m.cfg.TakeProfitLadder {
		if multiple < lvl.Multiple || pos.LevelTriggered(lvl.Multiple) {
			continue
		}
		err := m.book.PartialClose(ctx, mint, lvl.Multiple, lvl.SellFraction, price)
		if err != nil {
			m.logger.Printf("[exit] partial close %s at %gx failed: %v", mint, lvl.Multiple, err)
			return
		}
		pos.TriggeredLevels[lvl.Multiple] = true
	}

	// 4. Trailing stop.
	if !pos.TrailingArmed && multiple >= m.cfg.TrailingActivation {
		m.book.ArmTrailing(mint)
		pos.TrailingArmed = true
		m.logger.Printf("[exit] trailing stop armed for %s at %.2fx", mint, multiple)
	}
	if pos.TrailingArmed && price <= pos.HighestPrice*(1-m.cfg.TrailingStopPct) {
		m.close(ctx, mint, price, domain.ExitReasonTrailingStop)
	}
}

// CloseAll closes every open position with the given reason, typically
// on shutdown. Failures are logged and skipped so one stuck exit does
// not block the rest.
func (m *Monitor) CloseAll(ctx context.Context, positions []*domain.Position, price func(mint string) float64, reason string) []*domain.ClosedTrade {
	var closed []*domain.ClosedTrade
	for _, pos := range positions {
		p := price(pos.Mint)
		if p <= 0 {
			p = pos.EntryPrice
		}
		trade, err := m.book.Close(ctx, pos.Mint, p, reason)
		if err != nil {
			m.logger.Printf("[exit] close %s (%s) failed: %v", pos.Mint, reason, err)
			continue
		}
		closed = append(closed, trade)
	}
	return closed
}

func (m *Monitor) close(ctx context.Context, mint string, price float64, reason string) {
	if _, err := m.book.Close(ctx, mint, price, reason); err != nil {
		m.logger.Printf("[exit] close %s (%s) failed: %v", mint, reason, err)
	}
}
