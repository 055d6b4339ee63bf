// Package engine wires scoring, admission, the ledger and the exit
// monitor into the two processing loops: candidates in, prices in. The
// engine is an explicit instance constructed once from validated
// config; there is no ambient global state.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"pump-sniper/internal/admission"
	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
	"pump-sniper/internal/exit"
	"pump-sniper/internal/ledger"
	"pump-sniper/internal/observability"
	"pump-sniper/internal/risk"
	"pump-sniper/internal/scoring"
	"pump-sniper/internal/storage"
)

// Engine drives the position lifecycle.
type Engine struct {
	cfg        config.Config
	breaker    *risk.Breaker
	book       *ledger.Ledger
	monitor    *exit.Monitor
	controller *admission.Controller
	trades     storage.ClosedTradeStore
	ticks      storage.TickStore
	metrics    *observability.Metrics
	logger     *log.Logger
	dryRun     bool

	startedAt time.Time
	now       func() time.Time

	mu         sync.Mutex
	lastPrices map[string]float64
}

// Options configures an Engine. Breaker, Ledger, Monitor, Controller
// and TradeStore are required; TickStore is optional.
type Options struct {
	Config     config.Config
	Breaker    *risk.Breaker
	Ledger     *ledger.Ledger
	Monitor    *exit.Monitor
	Controller *admission.Controller
	TradeStore storage.ClosedTradeStore
	TickStore  storage.TickStore
	Metrics    *observability.Metrics
	Logger     *log.Logger

	// DryRun logs approvals instead of opening positions. Exits are
	// unaffected; a dry-run engine simply never holds anything.
	DryRun bool

	// Now overrides the clock; nil means time.Now. Used by tests.
	Now func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:        opts.Config,
		breaker:    opts.Breaker,
		book:       opts.Ledger,
		monitor:    opts.Monitor,
		controller: opts.Controller,
		trades:     opts.TradeStore,
		ticks:      opts.TickStore,
		metrics:    opts.Metrics,
		logger:     logger,
		dryRun:     opts.DryRun,
		startedAt:  now(),
		now:        now,
		lastPrices: make(map[string]float64),
	}
}

// ProcessCandidates scores and admits a batch of candidates. One bad or
// rejected candidate never fails the batch. Returns the number of
// positions opened.
func (e *Engine) ProcessCandidates(ctx context.Context, candidates []domain.TokenCandidate) int {
	opened := 0
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return opened
		}
		if cand.Mint == "" {
			continue
		}

		score := scoring.Score(cand)
		decision := e.controller.Evaluate(cand, score, e.availableCapital())
		if !decision.Approved {
			e.logger.Printf("[engine] rejected %s (score %d): %s", cand.Mint, score, decision.RejectReason)
			if e.metrics != nil {
				e.metrics.AdmissionsRejected.WithLabelValues(decision.RejectCode).Inc()
			}
			continue
		}

		if e.dryRun {
			e.logger.Printf("[engine] dry run: would open %s (score %d) size=%.4f SOL stop=%.10f",
				cand.Mint, score, decision.SizeSOL, decision.StopPrice)
			continue
		}

		if _, err := e.book.Open(ctx, cand, decision.SizeSOL); err != nil {
			e.logger.Printf("[engine] open %s failed: %v", cand.Mint, err)
			continue
		}
		if e.metrics != nil {
			e.metrics.PositionsOpened.Inc()
		}
		opened++
	}
	return opened
}

// ProcessPrices applies one tick of the price feed: exits are evaluated
// for each mint with an open position, and all ticks are archived when
// a tick store is configured. Mints without an open position only feed
// the archive.
func (e *Engine) ProcessPrices(ctx context.Context, prices map[string]float64) {
	observedAt := e.now()

	for mint, price := range prices {
		if err := ctx.Err(); err != nil {
			return
		}
		if price <= 0 {
			continue
		}
		e.rememberPrice(mint, price)
		e.monitor.OnPriceTick(ctx, mint, price)
	}

	e.archiveTicks(ctx, prices, observedAt)
}

// Status assembles a point-in-time snapshot without holding any
// mutation lock across the aggregation.
func (e *Engine) Status(ctx context.Context) (domain.StatusSnapshot, error) {
	riskState := e.breaker.Snapshot()
	uptime := e.now().Sub(e.startedAt)

	snapshot := domain.StatusSnapshot{
		Uptime:        uptime,
		UptimeSeconds: uptime.Seconds(),
		Balance:       riskState.Balance,
		PeakBalance:   riskState.PeakBalance,
		OpenPositions: e.book.OpenCount(),
		DailyPnLSOL:   riskState.DailyPnL,
		TradingHalted: riskState.Halted,
	}

	trades, err := e.trades.GetAll(ctx)
	if err != nil {
		return domain.StatusSnapshot{}, err
	}
	for _, t := range trades {
		snapshot.TotalTrades++
		if t.Win() {
			snapshot.Wins++
		} else {
			snapshot.Losses++
		}
		snapshot.TotalPnLSOL += t.PnLSOL
	}
	if snapshot.TotalTrades > 0 {
		snapshot.WinRatePct = float64(snapshot.Wins) / float64(snapshot.TotalTrades) * 100
	}

	return snapshot, nil
}

// Shutdown closes every open position at its last observed price and
// returns the final status snapshot.
func (e *Engine) Shutdown(ctx context.Context) (domain.StatusSnapshot, error) {
	open := e.book.OpenPositions()
	if len(open) > 0 {
		e.logger.Printf("[engine] shutdown: closing %d open positions", len(open))
		e.monitor.CloseAll(ctx, open, e.lastPrice, domain.ExitReasonShutdown)
	}
	return e.Status(ctx)
}

// OpenMints returns the mints of all open positions, for the price
// feed watch set.
func (e *Engine) OpenMints() []string {
	positions := e.book.OpenPositions()
	mints := make([]string, 0, len(positions))
	for _, pos := range positions {
		mints = append(mints, pos.Mint)
	}
	return mints
}

// availableCapital is the balance not committed to open positions.
func (e *Engine) availableCapital() float64 {
	committed := 0.0
	for _, pos := range e.book.OpenPositions() {
		committed += pos.EntrySOL
	}
	available := e.breaker.Balance() - committed
	if available < 0 {
		return 0
	}
	return available
}

func (e *Engine) rememberPrice(mint string, price float64) {
	e.mu.Lock()
	e.lastPrices[mint] = price
	e.mu.Unlock()
}

func (e *Engine) lastPrice(mint string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPrices[mint]
}

// archiveTicks writes the batch to the tick store. Archive failures are
// logged and dropped; analytics never stall trading.
func (e *Engine) archiveTicks(ctx context.Context, prices map[string]float64, observedAt time.Time) {
	if e.ticks == nil || len(prices) == 0 {
		return
	}

	batch := make([]*storage.PriceTick, 0, len(prices))
	for mint, price := range prices {
		if price <= 0 {
			continue
		}
		batch = append(batch, &storage.PriceTick{
			Mint:       mint,
			Price:      price,
			ObservedAt: observedAt,
		})
	}
	if len(batch) == 0 {
		return
	}

	if err := e.ticks.InsertBulk(ctx, batch); err != nil {
		e.logger.Printf("[engine] tick archive failed: %v", err)
		return
	}
	if e.metrics != nil {
		e.metrics.TicksArchived.Add(float64(len(batch)))
	}
}
