// Package scoring maps token metric snapshots to a bounded quality score.
package scoring

import "pump-sniper/internal/domain"

// Score computes a quality score in [0,100] for a candidate. It is pure and
// deterministic: the same snapshot always yields the same score.
//
// The score is a sum of independently capped tiers. Price-action tiers
// reward a healthy band rather than scoring monotonically, so a token that
// already pumped hard ranks below one in a moderate climb. All-zero metrics
// score 0.
func Score(c domain.TokenCandidate) int {
	score := 0

	// Volume tier (max 15)
	switch {
	case c.Volume24h >= 50:
		score += 15
	case c.Volume24h >= 20:
		score += 10
	case c.Volume24h >= 5:
		score += 5
	}

	// 1h holder growth tier (max 10)
	switch {
	case c.HolderGrowth1h >= 50:
		score += 10
	case c.HolderGrowth1h >= 30:
		score += 7
	case c.HolderGrowth1h >= 10:
		score += 4
	}

	// 24h holder growth tier (max 10)
	switch {
	case c.HolderGrowth24h >= 150:
		score += 10
	case c.HolderGrowth24h >= 100:
		score += 7
	case c.HolderGrowth24h >= 50:
		score += 3
	}

	// Buy/sell pressure tier (max 12). Needs both sides of the book.
	if c.BuyVolume1h > 0 && c.SellVolume1h > 0 {
		ratio := c.BuyVolume1h / c.SellVolume1h
		switch {
		case ratio >= 2.0:
			score += 12
		case ratio >= 1.5:
			score += 8
		case ratio >= 1.2:
			score += 5
		}
	}

	// 1h price action tier (max 8): moderate momentum beats a vertical pump.
	switch {
	case c.PriceChange1hPct >= 5 && c.PriceChange1hPct <= 50:
		score += 8
	case c.PriceChange1hPct > 0:
		score += 4
	}

	// 24h price action tier (max 7)
	switch {
	case c.PriceChange24hPct >= 20 && c.PriceChange24hPct <= 200:
		score += 7
	case c.PriceChange24hPct > 0:
		score += 3
	}

	// Holder count tier (max 8)
	switch {
	case c.HolderCount >= 200:
		score += 8
	case c.HolderCount >= 100:
		score += 5
	}

	// Concentration tier (max 7): distributed supply scores higher.
	switch {
	case c.TopHolderPct > 0 && c.TopHolderPct < 10:
		score += 7
	case c.TopHolderPct > 0 && c.TopHolderPct < 15:
		score += 4
	}

	if score > 100 {
		score = 100
	}
	return score
}
