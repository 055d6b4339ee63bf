package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// WalletBridge submits orders to a local wallet bridge over HTTP.
// The bridge holds the signing key; this process never sees it.
type WalletBridge struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// BridgeOption configures WalletBridge.
type BridgeOption func(*WalletBridge)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) BridgeOption {
	return func(b *WalletBridge) {
		b.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) BridgeOption {
	return func(b *WalletBridge) {
		b.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) BridgeOption {
	return func(b *WalletBridge) {
		b.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) BridgeOption {
	return func(b *WalletBridge) {
		b.client = client
	}
}

// NewWalletBridge creates a wallet bridge executor.
func NewWalletBridge(endpoint string, opts ...BridgeOption) *WalletBridge {
	b := &WalletBridge{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Compile-time interface check.
var _ Executor = (*WalletBridge)(nil)

// bridgeResponse is the wire format the bridge replies with.
type bridgeResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Submit posts the trade request to the bridge with retries and
// exponential backoff. Transport failures are retried; an explicit
// rejection from the bridge is returned as StatusFailed without retry.
func (b *WalletBridge) Submit(ctx context.Context, req TradeRequest) (TradeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return TradeResult{}, fmt.Errorf("marshal trade request: %w", err)
	}

	delay := b.retryDelay
	var lastErr error

	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return TradeResult{}, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * b.backoffMult)
			if delay > b.maxDelay {
				delay = b.maxDelay
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
		if err != nil {
			return TradeResult{}, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("bridge unavailable (%d): %s", resp.StatusCode, string(respBody))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return TradeResult{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		var bridgeResp bridgeResponse
		if err := json.Unmarshal(respBody, &bridgeResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		return mapBridgeResponse(bridgeResp)
	}

	return TradeResult{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func mapBridgeResponse(resp bridgeResponse) (TradeResult, error) {
	switch resp.Status {
	case "success":
		return TradeResult{Status: StatusSuccess, Signature: resp.Signature}, nil
	case "queued", "pending":
		return TradeResult{Status: StatusQueued, Signature: resp.Signature, Message: resp.Message}, nil
	case "failed", "error", "rejected":
		return TradeResult{Status: StatusFailed, Message: resp.Message}, nil
	default:
		return TradeResult{}, fmt.Errorf("unknown bridge status %q", resp.Status)
	}
}
