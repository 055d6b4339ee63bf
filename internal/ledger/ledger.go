// Package ledger owns the set of open positions. Every mutation of a
// position (open, watermark update, partial close, close) goes through
// a per-mint exclusive section, so concurrent candidate and price loops
// can never interleave on the same mint. Executor confirmation comes
// before bookkeeping: a queued or failed order never advances position
// state.
package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/executor"
	"pump-sniper/internal/storage"
)

// RiskReporter receives realized P&L deltas as exits confirm.
type RiskReporter interface {
	OnRealizedPnL(delta float64)
}

// entry pairs a position with its mutation lock. A nil position marks a
// reservation: an admission whose entry order is still in flight.
type entry struct {
	mu  sync.Mutex
	pos *domain.Position
}

// Ledger tracks open positions and writes terminal exits to the
// closed-trade log.
type Ledger struct {
	mu      sync.Mutex // guards the entries map only
	entries map[string]*entry

	exec    executor.Executor
	risk    RiskReporter
	trades  storage.ClosedTradeStore
	onClose func(*domain.ClosedTrade)
	logger  *log.Logger

	slippagePct float64
	now         func() time.Time
}

// Options configures a Ledger.
type Options struct {
	Executor    executor.Executor
	Risk        RiskReporter
	TradeStore  storage.ClosedTradeStore
	Logger      *log.Logger
	SlippagePct float64

	// OnClose is called with every confirmed terminal close, after the
	// position has left the open set. Used for metrics.
	OnClose func(*domain.ClosedTrade)

	// Now overrides the clock; nil means time.Now. Used by tests.
	Now func() time.Time
}

// New creates an empty Ledger.
func New(opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		entries:     make(map[string]*entry),
		exec:        opts.Executor,
		risk:        opts.Risk,
		trades:      opts.TradeStore,
		onClose:     opts.OnClose,
		logger:      logger,
		slippagePct: opts.SlippagePct,
		now:         now,
	}
}

// Open admits a new position: reserves the mint, submits the entry
// order, and creates the Position once the executor confirms the fill.
// The reservation is atomic with the duplicate check, so two concurrent
// admissions for the same mint cannot both succeed.
func (l *Ledger) Open(ctx context.Context, cand domain.TokenCandidate, sizeSOL float64) (*domain.Position, error) {
	if cand.PriceSOL <= 0 {
		return nil, fmt.Errorf("open %s: price must be positive", cand.Mint)
	}

	l.mu.Lock()
	if _, exists := l.entries[cand.Mint]; exists {
		l.mu.Unlock()
		return nil, fmt.Errorf("open %s: %w", cand.Mint, ErrDuplicateMint)
	}
	e := &entry{}
	e.mu.Lock()
	l.entries[cand.Mint] = e
	l.mu.Unlock()
	defer e.mu.Unlock()

	result, err := l.exec.Submit(ctx, executor.TradeRequest{
		Side:        executor.SideBuy,
		Mint:        cand.Mint,
		Symbol:      cand.Symbol,
		AmountSOL:   sizeSOL,
		Price:       cand.PriceSOL,
		SlippagePct: l.slippagePct,
	})
	if err != nil || result.Status != executor.StatusSuccess {
		l.removeEntry(cand.Mint)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cand.Mint, err)
		}
		return nil, fmt.Errorf("open %s (%s): %w", cand.Mint, result.Status, ErrEntryRejected)
	}

	e.pos = &domain.Position{
		TradeID:         uuid.NewString(),
		Mint:            cand.Mint,
		Symbol:          cand.Symbol,
		EntryPrice:      cand.PriceSOL,
		EntrySOL:        sizeSOL,
		Tokens:          sizeSOL / cand.PriceSOL,
		EntryTime:       l.now(),
		HighestPrice:    cand.PriceSOL,
		TriggeredLevels: make(map[float64]bool),
		Status:          domain.PositionOpen,
	}

	l.logger.Printf("[ledger] opened %s (%s) size=%.4f SOL price=%.10f trade=%s",
		cand.Symbol, cand.Mint, sizeSOL, cand.PriceSOL, e.pos.TradeID)

	snapshot := *e.pos
	return &snapshot, nil
}

// ApplyPriceUpdate raises the highest-price watermark. It never
// triggers exits; exit evaluation reads the snapshot separately.
func (l *Ledger) ApplyPriceUpdate(mint string, price float64) {
	e := l.lookup(mint)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pos == nil || e.pos.Status != domain.PositionOpen {
		return
	}
	if price > e.pos.HighestPrice {
		e.pos.HighestPrice = price
	}
}

// PartialClose sells sellFraction of the original quantity at a
// take-profit level. A level that already fired is a no-op. The level
// is only marked triggered after the executor confirms the fill.
func (l *Ledger) PartialClose(ctx context.Context, mint string, level, sellFraction, price float64) error {
	e := l.lookup(mint)
	if e == nil {
		return fmt.Errorf("partial close %s: %w", mint, ErrNoPosition)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.pos
	if pos == nil || pos.Status != domain.PositionOpen {
		return fmt.Errorf("partial close %s: %w", mint, ErrNoPosition)
	}
	if pos.LevelTriggered(level) {
		return nil
	}

	originalTokens := pos.EntrySOL / pos.EntryPrice
	tokensToSell := originalTokens * sellFraction
	if tokensToSell > pos.Tokens {
		tokensToSell = pos.Tokens
	}

	result, err := l.exec.Submit(ctx, executor.TradeRequest{
		Side:        executor.SideSell,
		Mint:        mint,
		Symbol:      pos.Symbol,
		Tokens:      tokensToSell,
		Price:       price,
		SlippagePct: l.slippagePct,
	})
	if err != nil || result.Status != executor.StatusSuccess {
		pos.ExitPending++
		if err != nil {
			return fmt.Errorf("partial close %s at %gx: %w", mint, level, err)
		}
		l.logger.Printf("[ledger] %s %s not confirmed (%s): %s",
			domain.PartialTPReason(level), mint, result.Status, result.Message)
		return fmt.Errorf("partial close %s at %gx (%s): %w", mint, level, result.Status, ErrExitPending)
	}

	proceeds := tokensToSell * price
	cost := tokensToSell * pos.EntryPrice

	pos.TriggeredLevels[level] = true
	pos.Tokens -= tokensToSell
	pos.RealizedSOL += proceeds

	if l.risk != nil {
		l.risk.OnRealizedPnL(proceeds - cost)
	}

	l.logger.Printf("[ledger] %s %s: sold %.2f tokens for %.4f SOL (pnl %+.4f)",
		domain.PartialTPReason(level), pos.Symbol, tokensToSell, proceeds, proceeds-cost)
	return nil
}

// Close sells the remaining quantity and moves the position to the
// closed-trade log. Terminal: the mint leaves the open set and can only
// reappear as a brand-new position with a new trade id.
func (l *Ledger) Close(ctx context.Context, mint string, price float64, reason string) (*domain.ClosedTrade, error) {
	e := l.lookup(mint)
	if e == nil {
		return nil, fmt.Errorf("close %s: %w", mint, ErrNoPosition)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.pos
	if pos == nil || pos.Status != domain.PositionOpen {
		return nil, fmt.Errorf("close %s: %w", mint, ErrNoPosition)
	}

	result, err := l.exec.Submit(ctx, executor.TradeRequest{
		Side:        executor.SideSell,
		Mint:        mint,
		Symbol:      pos.Symbol,
		Tokens:      pos.Tokens,
		Price:       price,
		SlippagePct: l.slippagePct,
	})
	if err != nil || result.Status != executor.StatusSuccess {
		pos.ExitPending++
		if err != nil {
			return nil, fmt.Errorf("close %s (%s): %w", mint, reason, err)
		}
		l.logger.Printf("[ledger] close %s (%s) not confirmed (%s): %s",
			mint, reason, result.Status, result.Message)
		return nil, fmt.Errorf("close %s (%s, %s): %w", mint, reason, result.Status, ErrExitPending)
	}

	proceeds := pos.Tokens * price
	cost := pos.Tokens * pos.EntryPrice
	exitTime := l.now()

	trade := &domain.ClosedTrade{
		TradeID:      pos.TradeID,
		Mint:         pos.Mint,
		Symbol:       pos.Symbol,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    price,
		PnLSOL:       pos.RealizedSOL + proceeds - pos.EntrySOL,
		Reason:       reason,
		EntryTime:    pos.EntryTime,
		ExitTime:     exitTime,
		HoldDuration: exitTime.Sub(pos.EntryTime),
	}
	if pos.EntrySOL > 0 {
		trade.PnLPct = trade.PnLSOL / pos.EntrySOL * 100
	}

	pos.Status = domain.PositionClosed
	l.removeEntry(mint)

	if l.risk != nil {
		l.risk.OnRealizedPnL(proceeds - cost)
	}

	if l.onClose != nil {
		l.onClose(trade)
	}

	if l.trades != nil {
		if err := l.trades.Insert(ctx, trade); err != nil {
			// The exit is already executed; losing the log entry must
			// not resurrect the position.
			l.logger.Printf("[ledger] failed to record closed trade %s: %v", trade.TradeID, err)
		}
	}

	l.logger.Printf("[ledger] closed %s (%s): pnl %+.4f SOL (%+.1f%%) after %s",
		pos.Symbol, reason, trade.PnLSOL, trade.PnLPct, trade.HoldDuration.Round(time.Second))
	return trade, nil
}

// ArmTrailing marks the trailing stop as armed. Arming is monotonic;
// there is no disarm.
func (l *Ledger) ArmTrailing(mint string) {
	e := l.lookup(mint)
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pos != nil && e.pos.Status == domain.PositionOpen {
		e.pos.TrailingArmed = true
	}
}

// Get returns a copy of the open position for a mint, or nil.
func (l *Ledger) Get(mint string) *domain.Position {
	e := l.lookup(mint)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pos == nil || e.pos.Status != domain.PositionOpen {
		return nil
	}
	return copyPosition(e.pos)
}

// OpenPositions returns point-in-time copies of all open positions.
func (l *Ledger) OpenPositions() []*domain.Position {
	l.mu.Lock()
	entries := make([]*entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	l.mu.Unlock()

	var out []*domain.Position
	for _, e := range entries {
		e.mu.Lock()
		if e.pos != nil && e.pos.Status == domain.PositionOpen {
			out = append(out, copyPosition(e.pos))
		}
		e.mu.Unlock()
	}
	return out
}

// OpenCount returns the number of open positions plus in-flight
// admissions. Reservations count so the concurrency cap cannot be
// raced past.
func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// HasOpen reports whether a mint has an open position or an admission
// in flight.
func (l *Ledger) HasOpen(mint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[mint]
	return ok
}

func (l *Ledger) lookup(mint string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[mint]
}

func (l *Ledger) removeEntry(mint string) {
	l.mu.Lock()
	delete(l.entries, mint)
	l.mu.Unlock()
}

func copyPosition(p *domain.Position) *domain.Position {
	cp := *p
	cp.TriggeredLevels = make(map[float64]bool, len(p.TriggeredLevels))
	for k, v := range p.TriggeredLevels {
		cp.TriggeredLevels[k] = v
	}
	return &cp
}
