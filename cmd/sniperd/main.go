// Package main runs the sniper daemon: a candidate scan loop feeding
// the admission path, a websocket price loop feeding the exit monitor,
// and a status loop for logging and metrics. Positions close on
// shutdown; only the closed-trade log persists across restarts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"pump-sniper/internal/admission"
	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
	"pump-sniper/internal/engine"
	"pump-sniper/internal/executor"
	"pump-sniper/internal/exit"
	"pump-sniper/internal/feed"
	"pump-sniper/internal/ledger"
	"pump-sniper/internal/observability"
	"pump-sniper/internal/risk"
	"pump-sniper/internal/storage"
	chstore "pump-sniper/internal/storage/clickhouse"
	"pump-sniper/internal/storage/memory"
	"pump-sniper/internal/storage/migrations"
	pgstore "pump-sniper/internal/storage/postgres"
)

// Sniper holds all components of the daemon.
type Sniper struct {
	cfg     config.Config
	engine  *engine.Engine
	prices  *feed.PumpPortalSource
	source  *feed.BirdeyeSource
	metrics *observability.Metrics
	logger  *log.Logger

	scanInterval   time.Duration
	statusInterval time.Duration

	mu      sync.Mutex
	watched map[string]struct{}
}

func main() {
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("SNIPER_CONFIG"), "Path to YAML config file")
	birdeyeURL := flag.String("birdeye-url", envOr("BIRDEYE_URL", "https://public-api.birdeye.so"), "Birdeye API base URL")
	birdeyeKey := flag.String("birdeye-key", os.Getenv("BIRDEYE_API_KEY"), "Birdeye API key")
	pumpportalURL := flag.String("pumpportal-url", envOr("PUMPPORTAL_URL", "wss://pumpportal.fun/api/data"), "PumpPortal websocket endpoint")
	bridgeURL := flag.String("bridge-url", os.Getenv("WALLET_BRIDGE_URL"), "Wallet bridge endpoint for live execution")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the trade log")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the tick archive")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	paper := flag.Bool("paper", false, "Paper trading: simulate fills instead of submitting to the wallet bridge")
	dryRun := flag.Bool("dry-run", false, "Score and admit candidates but never open positions")
	balance := flag.Float64("balance", 0, "Starting account balance in SOL")
	solPriceUSD := flag.Float64("sol-price-usd", 0, "SOL/USD rate for converting feed figures (0 = no conversion)")
	scanInterval := flag.Duration("scan-interval", 30*time.Second, "Candidate scan interval")
	statusInterval := flag.Duration("status-interval", 60*time.Second, "Status report interval")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/metrics/status")

	flag.Parse()

	logger := log.New(os.Stdout, "[sniperd] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	if *balance <= 0 {
		logger.Fatal("--balance is required and must be positive")
	}
	if *birdeyeKey == "" {
		logger.Fatal("--birdeye-key is required")
	}
	if !*paper && !*dryRun && *bridgeURL == "" {
		logger.Fatal("--bridge-url is required for live execution (use --paper or --dry-run to simulate)")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	exec := executor.NewObserved(buildExecutor(cfg, *paper || *dryRun, *bridgeURL, logger),
		func(result executor.TradeResult, err error) {
			status := string(result.Status)
			if err != nil {
				status = "error"
			}
			metrics.Submissions.WithLabelValues(status).Inc()
		})

	breaker := risk.New(risk.Options{
		InitialBalance:    *balance,
		DailyLossLimitPct: cfg.DailyLossLimitPct,
		MaxDrawdownPct:    cfg.MaxDrawdownPct,
		RecoveryPct:       cfg.DrawdownRecoveryPct,
	})
	book := ledger.New(ledger.Options{
		Executor:    exec,
		Risk:        breaker,
		TradeStore:  stores.trades,
		Logger:      log.New(os.Stdout, "[ledger] ", log.LstdFlags),
		SlippagePct: cfg.SlippageTolerancePct,
		OnClose: func(trade *domain.ClosedTrade) {
			metrics.TradesClosed.WithLabelValues(trade.Reason).Inc()
		},
	})
	monitor := exit.New(exit.Options{
		Book:   book,
		Config: cfg,
		Logger: log.New(os.Stdout, "[exit] ", log.LstdFlags),
	})
	controller := admission.New(cfg, breaker, book)

	eng := engine.New(engine.Options{
		Config:     cfg,
		Breaker:    breaker,
		Ledger:     book,
		Monitor:    monitor,
		Controller: controller,
		TradeStore: stores.trades,
		TickStore:  stores.ticks,
		Metrics:    metrics,
		Logger:     log.New(os.Stdout, "[engine] ", log.LstdFlags),
		DryRun:     *dryRun,
	})
	if *dryRun {
		logger.Println("Dry run mode: approvals are logged, no positions will open")
	}

	prices, err := feed.NewPumpPortalSource(ctx, *pumpportalURL, log.New(os.Stdout, "[pumpportal] ", log.LstdFlags), nil)
	if err != nil {
		logger.Fatalf("Failed to connect price feed: %v", err)
	}
	defer prices.Close()

	source := feed.NewBirdeyeSource(*birdeyeURL, *birdeyeKey, cfg, log.New(os.Stdout, "[birdeye] ", log.LstdFlags),
		feed.WithSOLPriceUSD(*solPriceUSD))

	sniper := &Sniper{
		cfg:            cfg,
		engine:         eng,
		prices:         prices,
		source:         source,
		metrics:        metrics,
		logger:         logger,
		scanInterval:   *scanInterval,
		statusInterval: *statusInterval,
		watched:        make(map[string]struct{}),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	go sniper.startHTTPServer(*httpAddr)

	err = sniper.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Daemon error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// sniperStores holds the storage implementations.
type sniperStores struct {
	trades storage.ClosedTradeStore
	ticks  storage.TickStore
}

// createStores creates the trade log and tick archive stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*sniperStores, func(), error) {
	if useMemory {
		return &sniperStores{
			trades: memory.NewClosedTradeStore(),
			ticks:  memory.NewTickStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	if err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &sniperStores{
		trades: pgstore.NewClosedTradeStore(pool),
		ticks:  chstore.NewTickStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// buildExecutor wires the execution backend with the configured retry
// policy.
func buildExecutor(cfg config.Config, paper bool, bridgeURL string, logger *log.Logger) executor.Executor {
	var inner executor.Executor
	if paper {
		logger.Println("Paper trading mode: fills are simulated")
		inner = executor.NewPaperExecutor()
	} else {
		inner = executor.NewWalletBridge(bridgeURL)
	}
	return executor.NewRetry(inner, cfg.ExecMaxAttempts, cfg.ExecRetryDelay.Std())
}

// Run starts the three loops and blocks until the context is done,
// then closes all open positions and reports the final snapshot.
func (s *Sniper) Run(ctx context.Context) error {
	s.logger.Println("Starting sniper daemon...")

	errCh := make(chan error, 3)

	go func() {
		if err := s.runScanLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("scan loop: %w", err)
		}
	}()

	go func() {
		if err := s.runPriceLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("price loop: %w", err)
		}
	}()

	go func() {
		if err := s.runStatusLoop(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("status loop: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}

	// Graceful teardown with a fresh context; the loop context is gone.
	teardownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	status, err := s.engine.Shutdown(teardownCtx)
	if err != nil {
		s.logger.Printf("Final status unavailable: %v", err)
	} else {
		s.logStatus("final", status)
	}
	return runErr
}

// runScanLoop fetches candidates on the scan interval and keeps the
// price feed watch set in sync with the open positions.
func (s *Sniper) runScanLoop(ctx context.Context) error {
	s.logger.Printf("Starting scan loop (interval: %v)...", s.scanInterval)

	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		s.scanOnce(ctx)
		s.syncWatches()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// scanOnce runs one fetch-and-admit cycle. A failed cycle is logged
// and skipped; the loop continues.
func (s *Sniper) scanOnce(ctx context.Context) {
	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	candidates, stats, err := s.source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Printf("Candidate fetch failed, skipping cycle: %v", err)
			s.metrics.FetchCycleErrors.Inc()
		}
		return
	}
	s.metrics.RecordFetch(stats.Received, stats.Valid, stats.Skipped, time.Since(start).Seconds())

	opened := s.engine.ProcessCandidates(ctx, candidates)
	if opened > 0 {
		s.logger.Printf("Opened %d positions from %d candidates", opened, len(candidates))
	}
}

// runPriceLoop applies every incoming tick to the exit monitor.
func (s *Sniper) runPriceLoop(ctx context.Context) error {
	s.logger.Println("Starting price loop...")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-s.prices.Ticks():
			if !ok {
				return fmt.Errorf("price feed closed")
			}
			s.engine.ProcessPrices(ctx, map[string]float64{tick.Mint: tick.Price})
			s.metrics.TicksProcessed.Inc()
		}
	}
}

// runStatusLoop logs the status snapshot and refreshes the gauges.
func (s *Sniper) runStatusLoop(ctx context.Context) error {
	s.logger.Printf("Starting status loop (interval: %v)...", s.statusInterval)

	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := s.engine.Status(ctx)
			if err != nil {
				s.logger.Printf("Status aggregation failed: %v", err)
				continue
			}
			s.metrics.UpdateStatus(status)
			s.logStatus("status", status)
			s.syncWatches()
		}
	}
}

// syncWatches subscribes the price feed to open mints and drops closed
// ones.
func (s *Sniper) syncWatches() {
	open := s.engine.OpenMints()
	sort.Strings(open)

	openSet := make(map[string]struct{}, len(open))
	for _, mint := range open {
		openSet[mint] = struct{}{}
	}

	s.mu.Lock()
	var toWatch, toDrop []string
	for _, mint := range open {
		if _, ok := s.watched[mint]; !ok {
			toWatch = append(toWatch, mint)
			s.watched[mint] = struct{}{}
		}
	}
	for mint := range s.watched {
		if _, ok := openSet[mint]; !ok {
			toDrop = append(toDrop, mint)
			delete(s.watched, mint)
		}
	}
	s.mu.Unlock()

	if len(toWatch) > 0 {
		if err := s.prices.Watch(toWatch...); err != nil {
			s.logger.Printf("Price feed subscribe failed: %v", err)
		}
	}
	if len(toDrop) > 0 {
		if err := s.prices.Unwatch(toDrop...); err != nil {
			s.logger.Printf("Price feed unsubscribe failed: %v", err)
		}
	}
}

func (s *Sniper) logStatus(label string, status domain.StatusSnapshot) {
	s.logger.Printf("%s: balance=%.4f SOL (peak %.4f) open=%d trades=%d (%dW/%dL, %.1f%%) pnl=%+.4f daily=%+.4f halted=%v uptime=%s",
		label, status.Balance, status.PeakBalance, status.OpenPositions,
		status.TotalTrades, status.Wins, status.Losses, status.WinRatePct,
		status.TotalPnLSOL, status.DailyPnLSOL, status.TradingHalted,
		status.Uptime.Round(time.Second))
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Sniper) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// handleStatus returns the engine snapshot as JSON.
func (s *Sniper) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
