package storage

import (
	"context"
	"time"

	"pump-sniper/internal/domain"
)

// ClosedTradeStore is the append-only trade log. Records are immutable once
// written; there are no update or delete operations.
type ClosedTradeStore interface {
	// Insert appends a closed trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.ClosedTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.ClosedTrade, error)

	// GetByMint retrieves all trades for a mint, ordered by exit time ASC.
	// A mint can appear multiple times: each reopen is a new trade.
	GetByMint(ctx context.Context, mint string) ([]*domain.ClosedTrade, error)

	// GetSince retrieves trades with exit time at or after the cutoff,
	// ordered by exit time ASC.
	GetSince(ctx context.Context, cutoff time.Time) ([]*domain.ClosedTrade, error)

	// GetAll retrieves the full log, ordered by exit time ASC.
	GetAll(ctx context.Context) ([]*domain.ClosedTrade, error)
}

// PriceTick is one observed price for a mint, archived for later analysis.
type PriceTick struct {
	Mint       string
	Price      float64
	ObservedAt time.Time
}

// TickStore archives price ticks. The archive is analytical: writes are
// batched and duplicates are tolerated at the feed's discretion.
type TickStore interface {
	// InsertBulk appends a batch of ticks.
	InsertBulk(ctx context.Context, ticks []*PriceTick) error

	// GetByMint retrieves all ticks for a mint, ordered by observation time ASC.
	GetByMint(ctx context.Context, mint string) ([]*PriceTick, error)

	// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end time.Time) ([]*PriceTick, error)
}
