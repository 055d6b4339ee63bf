package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pump-sniper/internal/storage"
)

// TickStore implements storage.TickStore using ClickHouse. Ticks are an
// analytical archive; inserts are batched and never updated.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a new TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends a batch of ticks.
func (s *TickStore) InsertBulk(ctx context.Context, ticks []*storage.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (mint, price, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, tick := range ticks {
		if tick == nil || tick.Mint == "" {
			return storage.ErrInvalidInput
		}
		if err := batch.Append(tick.Mint, tick.Price, tick.ObservedAt); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all ticks for a mint, ordered by observation time ASC.
func (s *TickStore) GetByMint(ctx context.Context, mint string) ([]*storage.PriceTick, error) {
	query := `
		SELECT mint, price, observed_at
		FROM price_ticks
		WHERE mint = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query ticks by mint: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(ctx context.Context, mint string, start, end time.Time) ([]*storage.PriceTick, error) {
	query := `
		SELECT mint, price, observed_at
		FROM price_ticks
		WHERE mint = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("query ticks by time range: %w", err)
	}
	defer rows.Close()

	return scanTicks(rows)
}

type tickRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTicks(rows tickRows) ([]*storage.PriceTick, error) {
	var ticks []*storage.PriceTick

	for rows.Next() {
		var t storage.PriceTick
		if err := rows.Scan(&t.Mint, &t.Price, &t.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}

	return ticks, nil
}
