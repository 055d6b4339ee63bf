package scoring

import (
	"testing"

	"pump-sniper/internal/domain"
)

func TestScore_AllZeroMetrics(t *testing.T) {
	got := Score(domain.TokenCandidate{})
	if got != 0 {
		t.Errorf("all-zero candidate scored %d, want 0", got)
	}
}

func TestScore_Bounded(t *testing.T) {
	candidates := []domain.TokenCandidate{
		{},
		{Volume24h: 1e9, HolderGrowth1h: 1e6, HolderGrowth24h: 1e6,
			BuyVolume1h: 100, SellVolume1h: 1, PriceChange1hPct: 25,
			PriceChange24hPct: 100, HolderCount: 100000, TopHolderPct: 1},
		{Volume24h: -5, PriceChange1hPct: -80, PriceChange24hPct: -99},
		{Volume24h: 21, HolderCount: 150},
	}
	for i, c := range candidates {
		got := Score(c)
		if got < 0 || got > 100 {
			t.Errorf("candidate %d scored %d, want within [0,100]", i, got)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	c := domain.TokenCandidate{Volume24h: 30, HolderCount: 120, PriceChange1hPct: 10}
	if Score(c) != Score(c) {
		t.Error("score must be deterministic")
	}
}

func TestScore_HealthyBandBeatsExtremePump(t *testing.T) {
	moderate := domain.TokenCandidate{PriceChange1hPct: 20}
	// A token already up 500% in an hour is outside the healthy band and
	// falls back to the generic positive tier.
	pumped := domain.TokenCandidate{PriceChange1hPct: 500}

	if Score(moderate) <= Score(pumped) {
		t.Errorf("moderate climb (%d) should outscore extreme pump (%d)",
			Score(moderate), Score(pumped))
	}
}

func TestScore_VolumeTiers(t *testing.T) {
	tests := []struct {
		volume float64
		want   int
	}{
		{0, 0},
		{4.9, 0},
		{5, 5},
		{20, 10},
		{50, 15},
		{1000, 15},
	}
	for _, tt := range tests {
		got := Score(domain.TokenCandidate{Volume24h: tt.volume})
		if got != tt.want {
			t.Errorf("volume %v scored %d, want %d", tt.volume, got, tt.want)
		}
	}
}

func TestScore_BuySellPressureNeedsBothSides(t *testing.T) {
	// Buy volume alone cannot establish a ratio; the tier contributes zero.
	oneSided := domain.TokenCandidate{BuyVolume1h: 100}
	if got := Score(oneSided); got != 0 {
		t.Errorf("one-sided volume scored %d, want 0", got)
	}

	balanced := domain.TokenCandidate{BuyVolume1h: 30, SellVolume1h: 10}
	if got := Score(balanced); got != 12 {
		t.Errorf("3:1 pressure scored %d, want 12", got)
	}
}

func TestScore_ConcentrationRewardsDistribution(t *testing.T) {
	tight := Score(domain.TokenCandidate{TopHolderPct: 8})
	loose := Score(domain.TokenCandidate{TopHolderPct: 14})
	whale := Score(domain.TokenCandidate{TopHolderPct: 40})

	if tight != 7 || loose != 4 || whale != 0 {
		t.Errorf("concentration tiers = %d/%d/%d, want 7/4/0", tight, loose, whale)
	}
}
