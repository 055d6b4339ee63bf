// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pump-sniper/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Candidate feed metrics
	CandidatesReceived prometheus.Counter
	CandidatesValid    prometheus.Counter
	CandidatesSkipped  *prometheus.CounterVec
	FetchCycleErrors   prometheus.Counter
	FetchLatency       prometheus.Histogram

	// Admission metrics
	PositionsOpened    prometheus.Counter
	AdmissionsRejected *prometheus.CounterVec

	// Execution metrics
	Submissions *prometheus.CounterVec

	// Price feed metrics
	TicksProcessed prometheus.Counter
	TicksArchived  prometheus.Counter

	// Trade metrics
	TradesClosed *prometheus.CounterVec

	// Account metrics
	OpenPositions prometheus.Gauge
	BalanceSOL    prometheus.Gauge
	PeakBalance   prometheus.Gauge
	DailyPnLSOL   prometheus.Gauge
	TotalPnLSOL   prometheus.Gauge
	WinRatePct    prometheus.Gauge
	TradingHalted prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_sniper"
	}

	return &Metrics{
		CandidatesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candidates_received_total",
			Help:      "Total number of candidate records received from the feed",
		}),
		CandidatesValid: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candidates_valid_total",
			Help:      "Total number of candidate records that passed normalization",
		}),
		CandidatesSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "candidates_skipped_total",
			Help:      "Total number of candidate records skipped by reason",
		}, []string{"reason"}),
		FetchCycleErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_cycle_errors_total",
			Help:      "Total number of failed candidate fetch cycles",
		}),
		FetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_latency_seconds",
			Help:      "Candidate fetch cycle latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		AdmissionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "admissions_rejected_total",
			Help:      "Total number of candidates rejected at admission by reason",
		}, []string{"reason"}),

		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "submissions_total",
			Help:      "Total number of trade submissions by result status",
		}, []string{"status"}),

		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_processed_total",
			Help:      "Total number of price ticks processed",
		}),
		TicksArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_archived_total",
			Help:      "Total number of price ticks written to the archive",
		}),

		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by exit reason",
		}, []string{"reason"}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),
		BalanceSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "balance_sol",
			Help:      "Current account balance in SOL",
		}),
		PeakBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "peak_balance_sol",
			Help:      "Peak account balance in SOL",
		}),
		DailyPnLSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "daily_pnl_sol",
			Help:      "Realized P&L for the current UTC day in SOL",
		}),
		TotalPnLSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "total_pnl_sol",
			Help:      "Cumulative realized P&L in SOL",
		}),
		WinRatePct: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "win_rate_pct",
			Help:      "Win rate over all closed trades in percent",
		}),
		TradingHalted: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "trading_halted",
			Help:      "1 while the circuit breaker blocks new admissions",
		}),
	}
}

// RecordFetch records one candidate fetch cycle.
func (m *Metrics) RecordFetch(received, valid int, skipped map[string]int, seconds float64) {
	m.CandidatesReceived.Add(float64(received))
	m.CandidatesValid.Add(float64(valid))
	for reason, count := range skipped {
		m.CandidatesSkipped.WithLabelValues(reason).Add(float64(count))
	}
	m.FetchLatency.Observe(seconds)
}

// UpdateStatus pushes a status snapshot into the account gauges.
func (m *Metrics) UpdateStatus(s domain.StatusSnapshot) {
	m.OpenPositions.Set(float64(s.OpenPositions))
	m.BalanceSOL.Set(s.Balance)
	m.PeakBalance.Set(s.PeakBalance)
	m.DailyPnLSOL.Set(s.DailyPnLSOL)
	m.TotalPnLSOL.Set(s.TotalPnLSOL)
	m.WinRatePct.Set(s.WinRatePct)
	if s.TradingHalted {
		m.TradingHalted.Set(1)
	} else {
		m.TradingHalted.Set(0)
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
