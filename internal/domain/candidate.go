package domain

import "time"

// TokenCandidate is a normalized snapshot of a freshly discovered token.
// Feed adapters produce it with all fields populated or defaulted to zero;
// nothing downstream of the feed boundary does its own defaulting.
type TokenCandidate struct {
	Mint   string // token mint address (base58)
	Symbol string

	PriceSOL  float64 // current price in SOL
	Age       time.Duration
	Volume24h float64 // 24h volume in SOL

	HolderCount     int
	HolderGrowth1h  float64 // new holders over the last hour
	HolderGrowth24h float64

	BuyVolume1h  float64
	SellVolume1h float64

	PriceChange1hPct  float64
	PriceChange24hPct float64

	// TopHolderPct is the largest holder's share of supply, in percent.
	TopHolderPct float64

	// SentimentScore is an opaque external hype score in [0,100].
	// Feeds that cannot produce it leave it zero.
	SentimentScore float64
}
