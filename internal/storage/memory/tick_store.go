package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pump-sniper/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data []*storage.PriceTick
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends a batch of ticks.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*storage.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tick := range ticks {
		if tick == nil || tick.Mint == "" {
			return storage.ErrInvalidInput
		}
		cp := *tick
		s.data = append(s.data, &cp)
	}
	return nil
}

// GetByMint retrieves all ticks for a mint, ordered by observation time ASC.
func (s *TickStore) GetByMint(_ context.Context, mint string) ([]*storage.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.PriceTick
	for _, tick := range s.data {
		if tick.Mint == mint {
			cp := *tick
			result = append(result, &cp)
		}
	}

	sortByObservedAt(result)
	return result, nil
}

// GetByTimeRange retrieves ticks for a mint within [start, end] (inclusive).
func (s *TickStore) GetByTimeRange(_ context.Context, mint string, start, end time.Time) ([]*storage.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.PriceTick
	for _, tick := range s.data {
		if tick.Mint != mint {
			continue
		}
		if tick.ObservedAt.Before(start) || tick.ObservedAt.After(end) {
			continue
		}
		cp := *tick
		result = append(result, &cp)
	}

	sortByObservedAt(result)
	return result, nil
}

func sortByObservedAt(ticks []*storage.PriceTick) {
	sort.Slice(ticks, func(i, j int) bool {
		return ticks[i].ObservedAt.Before(ticks[j].ObservedAt)
	})
}
