package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/storage"
)

// ClosedTradeStore is an in-memory implementation of storage.ClosedTradeStore.
type ClosedTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ClosedTrade // keyed by trade_id
}

// NewClosedTradeStore creates a new in-memory closed trade store.
func NewClosedTradeStore() *ClosedTradeStore {
	return &ClosedTradeStore{
		data: make(map[string]*domain.ClosedTrade),
	}
}

// Compile-time interface check.
var _ storage.ClosedTradeStore = (*ClosedTradeStore)(nil)

// Insert appends a closed trade. Returns ErrDuplicateKey if trade_id exists.
func (s *ClosedTradeStore) Insert(_ context.Context, t *domain.ClosedTrade) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.TradeID] = &cp
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *ClosedTradeStore) GetByID(_ context.Context, tradeID string) (*domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// GetByMint retrieves all trades for a mint, ordered by exit time ASC.
func (s *ClosedTradeStore) GetByMint(_ context.Context, mint string) ([]*domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClosedTrade
	for _, t := range s.data {
		if t.Mint == mint {
			cp := *t
			result = append(result, &cp)
		}
	}

	sortByExitTime(result)
	return result, nil
}

// GetSince retrieves trades with exit time at or after the cutoff.
func (s *ClosedTradeStore) GetSince(_ context.Context, cutoff time.Time) ([]*domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ClosedTrade
	for _, t := range s.data {
		if !t.ExitTime.Before(cutoff) {
			cp := *t
			result = append(result, &cp)
		}
	}

	sortByExitTime(result)
	return result, nil
}

// GetAll retrieves the full log, ordered by exit time ASC.
func (s *ClosedTradeStore) GetAll(_ context.Context) ([]*domain.ClosedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ClosedTrade, 0, len(s.data))
	for _, t := range s.data {
		cp := *t
		result = append(result, &cp)
	}

	sortByExitTime(result)
	return result, nil
}

func sortByExitTime(trades []*domain.ClosedTrade) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].ExitTime.Equal(trades[j].ExitTime) {
			return trades[i].TradeID < trades[j].TradeID
		}
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})
}
