package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
	"pump-sniper/internal/solana"
)

// Default Birdeye source configuration.
const (
	DefaultBirdeyeTimeout = 15 * time.Second
	DefaultBirdeyeLimit   = 50
)

// BirdeyeSource polls the Birdeye token list for trending candidates.
// One malformed record skips that record only; one failed cycle skips
// the cycle only.
type BirdeyeSource struct {
	baseURL     string
	apiKey      string
	client      *http.Client
	filter      *Filter
	logger      *log.Logger
	limit       int
	solPriceUSD float64
	now         func() time.Time
}

// BirdeyeOption configures BirdeyeSource.
type BirdeyeOption func(*BirdeyeSource)

// WithBirdeyeHTTPClient sets a custom http.Client.
func WithBirdeyeHTTPClient(client *http.Client) BirdeyeOption {
	return func(s *BirdeyeSource) {
		s.client = client
	}
}

// WithBirdeyeLimit sets the page size of each fetch.
func WithBirdeyeLimit(n int) BirdeyeOption {
	return func(s *BirdeyeSource) {
		s.limit = n
	}
}

// WithSOLPriceUSD sets the SOL/USD rate used to convert the API's USD
// figures. Zero leaves values unconverted.
func WithSOLPriceUSD(rate float64) BirdeyeOption {
	return func(s *BirdeyeSource) {
		s.solPriceUSD = rate
	}
}

// WithBirdeyeClock overrides the clock. Used by tests.
func WithBirdeyeClock(now func() time.Time) BirdeyeOption {
	return func(s *BirdeyeSource) {
		s.now = now
	}
}

// NewBirdeyeSource creates a Birdeye candidate source.
func NewBirdeyeSource(baseURL, apiKey string, cfg config.Config, logger *log.Logger, opts ...BirdeyeOption) *BirdeyeSource {
	if logger == nil {
		logger = log.Default()
	}
	s := &BirdeyeSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultBirdeyeTimeout},
		logger:  logger,
		limit:   DefaultBirdeyeLimit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.filter = NewFilter(cfg, s.now)
	return s
}

// birdeyeTokenList is the wire format of /defi/tokenlist.
type birdeyeTokenList struct {
	Success bool `json:"success"`
	Data    struct {
		Tokens []birdeyeToken `json:"tokens"`
	} `json:"data"`
}

// birdeyeToken is one raw token record. Every field may be absent.
type birdeyeToken struct {
	Address           string  `json:"address"`
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	Volume24hUSD      float64 `json:"v24hUSD"`
	PriceChange1hPct  float64 `json:"priceChange1hPercent"`
	PriceChange24hPct float64 `json:"priceChange24hPercent"`
	Holder            int     `json:"holder"`
	TopHolderPct      float64 `json:"top10HolderPercent"`
	ListingTime       int64   `json:"recentListingTime"` // unix seconds, 0 if unknown
}

// Fetch retrieves one page of candidates. The returned stats count
// every received record, valid or skipped.
func (s *BirdeyeSource) Fetch(ctx context.Context) ([]domain.TokenCandidate, FetchStats, error) {
	stats := newFetchStats()

	u, err := url.Parse(s.baseURL + "/defi/tokenlist")
	if err != nil {
		return nil, stats, fmt.Errorf("parse birdeye url: %w", err)
	}
	q := u.Query()
	q.Set("sort_by", "v24hChangePercent")
	q.Set("sort_type", "desc")
	q.Set("limit", strconv.Itoa(s.limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, stats, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, stats, fmt.Errorf("birdeye request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, stats, fmt.Errorf("read birdeye response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, stats, fmt.Errorf("birdeye status %d: %s", resp.StatusCode, string(body))
	}

	var list birdeyeTokenList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, stats, fmt.Errorf("parse birdeye response: %w", err)
	}
	if !list.Success {
		return nil, stats, fmt.Errorf("birdeye reported failure")
	}

	var out []domain.TokenCandidate
	for _, raw := range list.Data.Tokens {
		result := s.normalize(raw)
		stats.record(result)
		if result.Valid {
			out = append(out, result.Candidate)
		}
	}

	if len(stats.Skipped) > 0 {
		s.logger.Printf("[birdeye] fetched %d tokens, %d valid, skipped: %v",
			stats.Received, stats.Valid, stats.Skipped)
	}
	return out, stats, nil
}

// normalize maps one raw record to a candidate. USD figures convert to
// SOL when a rate is configured; unknown fields default to zero.
func (s *BirdeyeSource) normalize(raw birdeyeToken) ParseResult {
	if raw.Address == "" {
		return skip("missing address")
	}

	price := raw.Price
	volume := raw.Volume24hUSD
	if s.solPriceUSD > 0 {
		price /= s.solPriceUSD
		volume /= s.solPriceUSD
	}

	cand := domain.TokenCandidate{
		Mint:              raw.Address,
		Symbol:            raw.Symbol,
		PriceSOL:          price,
		Volume24h:         volume,
		PriceChange1hPct:  raw.PriceChange1hPct,
		PriceChange24hPct: raw.PriceChange24hPct,
		HolderCount:       raw.Holder,
		TopHolderPct:      raw.TopHolderPct,
	}
	if raw.ListingTime > 0 {
		cand.Age = s.now().Sub(time.Unix(raw.ListingTime, 0))
	}

	result := s.filter.Check(cand)
	if result.Valid && !solana.OnCurve(cand.Mint) {
		s.logger.Printf("[birdeye] accepted off-curve mint %s", cand.Mint)
	}
	return result
}
