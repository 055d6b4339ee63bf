package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// PumpPortalConfig configures the websocket price source.
type PumpPortalConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultPumpPortalConfig returns the default websocket configuration.
func DefaultPumpPortalConfig() PumpPortalConfig {
	return PumpPortalConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Tick is one observed price for a mint.
type Tick struct {
	Mint  string
	Price float64
}

// PumpPortalSource streams per-trade prices for watched mints over a
// websocket. It reconnects with exponential backoff and resubscribes
// to the watch set after every reconnect.
type PumpPortalSource struct {
	endpoint string
	config   PumpPortalConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	watch   map[string]struct{}
	watchMu sync.Mutex

	ticks chan Tick
	done  chan struct{}
	wg    sync.WaitGroup

	reconnecting atomic.Bool
}

// NewPumpPortalSource connects to the endpoint and starts streaming.
func NewPumpPortalSource(ctx context.Context, endpoint string, logger *log.Logger, config *PumpPortalConfig) (*PumpPortalSource, error) {
	cfg := DefaultPumpPortalConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &PumpPortalSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		watch:    make(map[string]struct{}),
		ticks:    make(chan Tick, 1024),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Ticks returns the stream of observed prices. Closed on Close.
func (s *PumpPortalSource) Ticks() <-chan Tick {
	return s.ticks
}

// Watch subscribes to trade events for the given mints. The watch set
// survives reconnects.
func (s *PumpPortalSource) Watch(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}

	s.watchMu.Lock()
	for _, mint := range mints {
		s.watch[mint] = struct{}{}
	}
	s.watchMu.Unlock()

	return s.send(map[string]any{
		"method": "subscribeTokenTrade",
		"keys":   mints,
	})
}

// Unwatch stops trade events for the given mints.
func (s *PumpPortalSource) Unwatch(mints ...string) error {
	if len(mints) == 0 {
		return nil
	}

	s.watchMu.Lock()
	for _, mint := range mints {
		delete(s.watch, mint)
	}
	s.watchMu.Unlock()

	return s.send(map[string]any{
		"method": "unsubscribeTokenTrade",
		"keys":   mints,
	})
}

// Close shuts the source down and closes the tick channel.
func (s *PumpPortalSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.ticks)
	return nil
}

func (s *PumpPortalSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

func (s *PumpPortalSource) send(payload any) error {
	if s.closed.Load() {
		return fmt.Errorf("source closed")
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(payload)
}

// tradeEvent is the wire format of one trade notification.
type tradeEvent struct {
	Mint        string  `json:"mint"`
	TxType      string  `json:"txType"`
	SolAmount   float64 `json:"solAmount"`
	TokenAmount float64 `json:"tokenAmount"`
}

func (s *PumpPortalSource) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// handleMessage parses one trade event. Malformed or irrelevant
// messages are dropped; a feed hiccup never stops the loop.
func (s *PumpPortalSource) handleMessage(message []byte) {
	var event tradeEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return
	}
	if event.Mint == "" || event.TokenAmount <= 0 || event.SolAmount <= 0 {
		return
	}

	tick := Tick{
		Mint:  event.Mint,
		Price: event.SolAmount / event.TokenAmount,
	}

	select {
	case s.ticks <- tick:
	case <-s.done:
	}
}

func (s *PumpPortalSource) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Printf("[pumpportal] reconnect failed: %v", err)
		return
	}

	s.resubscribe()
}

// resubscribe restores the watch set after a reconnect.
func (s *PumpPortalSource) resubscribe() {
	s.watchMu.Lock()
	mints := make([]string, 0, len(s.watch))
	for mint := range s.watch {
		mints = append(mints, mint)
	}
	s.watchMu.Unlock()

	if len(mints) == 0 {
		return
	}
	if err := s.send(map[string]any{
		"method": "subscribeTokenTrade",
		"keys":   mints,
	}); err != nil {
		s.logger.Printf("[pumpportal] resubscribe failed: %v", err)
	}
}

func (s *PumpPortalSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}
