package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/storage"
)

// ClosedTradeStore implements storage.ClosedTradeStore using PostgreSQL.
type ClosedTradeStore struct {
	pool *Pool
}

// NewClosedTradeStore creates a new ClosedTradeStore.
func NewClosedTradeStore(pool *Pool) *ClosedTradeStore {
	return &ClosedTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ClosedTradeStore = (*ClosedTradeStore)(nil)

const closedTradeColumns = `
	trade_id, mint, symbol,
	entry_price, exit_price, pnl_pct, pnl_sol,
	reason, entry_time, exit_time, hold_duration_ms
`

// Insert appends a closed trade. Returns ErrDuplicateKey if trade_id exists.
func (s *ClosedTradeStore) Insert(ctx context.Context, t *domain.ClosedTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO closed_trades (` + closedTradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Mint, t.Symbol,
		t.EntryPrice, t.ExitPrice, t.PnLPct, t.PnLSOL,
		t.Reason, t.EntryTime, t.ExitTime, t.HoldDuration.Milliseconds(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert closed trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *ClosedTradeStore) GetByID(ctx context.Context, tradeID string) (*domain.ClosedTrade, error) {
	query := `
		SELECT ` + closedTradeColumns + `
		FROM closed_trades
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanClosedTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get closed trade by id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves all trades for a mint, ordered by exit time ASC.
func (s *ClosedTradeStore) GetByMint(ctx context.Context, mint string) ([]*domain.ClosedTrade, error) {
	query := `
		SELECT ` + closedTradeColumns + `
		FROM closed_trades
		WHERE mint = $1
		ORDER BY exit_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get closed trades by mint: %w", err)
	}
	defer rows.Close()

	return scanClosedTrades(rows)
}

// GetSince retrieves trades with exit time at or after the cutoff.
func (s *ClosedTradeStore) GetSince(ctx context.Context, cutoff time.Time) ([]*domain.ClosedTrade, error) {
	query := `
		SELECT ` + closedTradeColumns + `
		FROM closed_trades
		WHERE exit_time >= $1
		ORDER BY exit_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get closed trades since: %w", err)
	}
	defer rows.Close()

	return scanClosedTrades(rows)
}

// GetAll retrieves the full log, ordered by exit time ASC.
func (s *ClosedTradeStore) GetAll(ctx context.Context) ([]*domain.ClosedTrade, error) {
	query := `
		SELECT ` + closedTradeColumns + `
		FROM closed_trades
		ORDER BY exit_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all closed trades: %w", err)
	}
	defer rows.Close()

	return scanClosedTrades(rows)
}

// scanClosedTrade scans a single row into a ClosedTrade.
func scanClosedTrade(row pgx.Row) (*domain.ClosedTrade, error) {
	var t domain.ClosedTrade
	var holdMs int64

	err := row.Scan(
		&t.TradeID, &t.Mint, &t.Symbol,
		&t.EntryPrice, &t.ExitPrice, &t.PnLPct, &t.PnLSOL,
		&t.Reason, &t.EntryTime, &t.ExitTime, &holdMs,
	)
	if err != nil {
		return nil, err
	}

	t.HoldDuration = time.Duration(holdMs) * time.Millisecond
	return &t, nil
}

// scanClosedTrades scans multiple rows into a slice of ClosedTrade.
func scanClosedTrades(rows pgx.Rows) ([]*domain.ClosedTrade, error) {
	var trades []*domain.ClosedTrade

	for rows.Next() {
		var t domain.ClosedTrade
		var holdMs int64

		err := rows.Scan(
			&t.TradeID, &t.Mint, &t.Symbol,
			&t.EntryPrice, &t.ExitPrice, &t.PnLPct, &t.PnLSOL,
			&t.Reason, &t.EntryTime, &t.ExitTime, &holdMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan closed trade row: %w", err)
		}

		t.HoldDuration = time.Duration(holdMs) * time.Millisecond
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed trade rows: %w", err)
	}

	return trades, nil
}
