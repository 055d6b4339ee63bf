// Package feed adapts external market data into normalized
// TokenCandidate records and price ticks. Normalization and defaulting
// happen once here, at the boundary; downstream components never see a
// half-populated record without an explicit skip result.
package feed

import (
	"fmt"
	"time"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
	"pump-sniper/internal/solana"
)

// ParseResult is the per-record outcome of normalization: either a
// valid candidate or a named skip reason. Skips are countable, never
// silently dropped.
type ParseResult struct {
	Candidate  domain.TokenCandidate
	Valid      bool
	SkipReason string
}

func skip(format string, args ...any) ParseResult {
	return ParseResult{SkipReason: fmt.Sprintf(format, args...)}
}

// FetchStats aggregates one fetch cycle for observability.
type FetchStats struct {
	Received int
	Valid    int
	Skipped  map[string]int // skip reason -> count
}

func newFetchStats() FetchStats {
	return FetchStats{Skipped: make(map[string]int)}
}

func (s *FetchStats) record(r ParseResult) {
	s.Received++
	if r.Valid {
		s.Valid++
	} else {
		s.Skipped[r.SkipReason]++
	}
}

// Filter applies the candidate admission pre-filters from config: the
// token age window, minimum holder count and minimum 24h volume.
type Filter struct {
	cfg config.Config
	now func() time.Time
}

// NewFilter creates a Filter. now may be nil for the wall clock.
func NewFilter(cfg config.Config, now func() time.Time) *Filter {
	if now == nil {
		now = time.Now
	}
	return &Filter{cfg: cfg, now: now}
}

// Check validates one normalized candidate against the pre-filters.
// It returns the pass/fail result with the failing filter named.
func (f *Filter) Check(c domain.TokenCandidate) ParseResult {
	if err := solana.ValidateMint(c.Mint); err != nil {
		return skip("invalid mint: %v", err)
	}
	if c.PriceSOL <= 0 {
		return skip("no price")
	}
	if c.Age > 0 {
		if c.Age < f.cfg.MinAge.Std() {
			return skip("too young (%s)", c.Age.Round(time.Second))
		}
		if c.Age > f.cfg.MaxAge.Std() {
			return skip("too old (%s)", c.Age.Round(time.Second))
		}
	}
	if c.HolderCount > 0 && c.HolderCount < f.cfg.MinHolders {
		return skip("holders %d below minimum %d", c.HolderCount, f.cfg.MinHolders)
	}
	if c.Volume24h > 0 && c.Volume24h < f.cfg.MinVolumeSOL {
		return skip("volume %.2f below minimum %.2f", c.Volume24h, f.cfg.MinVolumeSOL)
	}
	return ParseResult{Candidate: c, Valid: true}
}
