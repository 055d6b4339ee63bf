// Package config loads and validates process-wide trading configuration.
// Config is read-only after load; a violation of the take-profit ladder
// invariants is a startup error, never a runtime one.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "4h" decode naturally.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML decodes a duration string such as "30m" or "4h".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// TakeProfitLevel is one rung of the take-profit ladder: at Multiple times
// the entry price, sell SellFraction of the original token quantity.
type TakeProfitLevel struct {
	Multiple     float64 `yaml:"multiple"`
	SellFraction float64 `yaml:"sell_fraction"`
}

// Config holds all trading parameters.
type Config struct {
	// Sizing
	RiskPerTradePct    float64 `yaml:"risk_per_trade_pct"`
	MaxPositionSizePct float64 `yaml:"max_position_size_pct"`
	MaxConcurrent      int     `yaml:"max_concurrent"`
	MinTradeSOL        float64 `yaml:"min_trade_sol"`

	// Admission
	MinQualityScore int     `yaml:"min_quality_score"`
	MinRewardRisk   float64 `yaml:"min_reward_risk"`

	// Exits
	StopLossPct        float64           `yaml:"stop_loss_pct"`
	TrailingStopPct    float64           `yaml:"trailing_stop_pct"`
	TrailingActivation float64           `yaml:"trailing_activation"` // profit multiple that arms the trail
	TakeProfitLadder   []TakeProfitLevel `yaml:"take_profit_ladder"`
	MoonbagPct         float64           `yaml:"moonbag_pct"`
	MaxHoldTime        Duration          `yaml:"max_hold_time"`

	// Account-wide circuit breaker
	DailyLossLimitPct   float64 `yaml:"daily_loss_limit_pct"`
	MaxDrawdownPct      float64 `yaml:"max_drawdown_pct"`
	DrawdownRecoveryPct float64 `yaml:"drawdown_recovery_pct"`

	// Execution
	SlippageTolerancePct float64  `yaml:"slippage_tolerance_pct"`
	ExecMaxAttempts      int      `yaml:"exec_max_attempts"`
	ExecRetryDelay       Duration `yaml:"exec_retry_delay"`

	// Candidate filters applied at the feed boundary
	MinAge       Duration `yaml:"min_age"`
	MaxAge       Duration `yaml:"max_age"`
	MinHolders   int      `yaml:"min_holders"`
	MinVolumeSOL float64  `yaml:"min_volume_sol"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		RiskPerTradePct:    0.015,
		MaxPositionSizePct: 0.10,
		MaxConcurrent:      5,
		MinTradeSOL:        0.1,

		MinQualityScore: 65,
		MinRewardRisk:   2.0,

		StopLossPct:        0.15,
		TrailingStopPct:    0.10,
		TrailingActivation: 1.5,
		// Fractions are of the original quantity; together with the
		// moonbag they allocate exactly 100% of the position.
		TakeProfitLadder: []TakeProfitLevel{
			{Multiple: 2.0, SellFraction: 0.25},
			{Multiple: 5.0, SellFraction: 0.30},
			{Multiple: 10.0, SellFraction: 0.20},
			{Multiple: 20.0, SellFraction: 0.15},
		},
		MoonbagPct:  0.10,
		MaxHoldTime: Duration(4 * time.Hour),

		DailyLossLimitPct:   0.05,
		MaxDrawdownPct:      0.15,
		DrawdownRecoveryPct: 0.10,

		SlippageTolerancePct: 2.0,
		ExecMaxAttempts:      3,
		ExecRetryDelay:       Duration(2 * time.Second),

		MinAge:       Duration(2 * time.Minute),
		MaxAge:       Duration(2 * time.Hour),
		MinHolders:   50,
		MinVolumeSOL: 5,
	}
}

// Load reads configuration: defaults, overlaid by an optional YAML file,
// overlaid by environment variables. Returns an error if the result fails
// validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SNIPER_* environment variables on top of the
// loaded configuration. Unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	envFloat("SNIPER_RISK_PER_TRADE_PCT", &cfg.RiskPerTradePct)
	envFloat("SNIPER_MAX_POSITION_SIZE_PCT", &cfg.MaxPositionSizePct)
	envInt("SNIPER_MAX_CONCURRENT", &cfg.MaxConcurrent)
	envFloat("SNIPER_MIN_TRADE_SOL", &cfg.MinTradeSOL)
	envInt("SNIPER_MIN_QUALITY_SCORE", &cfg.MinQualityScore)
	envFloat("SNIPER_STOP_LOSS_PCT", &cfg.StopLossPct)
	envFloat("SNIPER_TRAILING_STOP_PCT", &cfg.TrailingStopPct)
	envFloat("SNIPER_DAILY_LOSS_LIMIT_PCT", &cfg.DailyLossLimitPct)
	envFloat("SNIPER_MAX_DRAWDOWN_PCT", &cfg.MaxDrawdownPct)
	envFloat("SNIPER_DRAWDOWN_RECOVERY_PCT", &cfg.DrawdownRecoveryPct)
	envDuration("SNIPER_MAX_HOLD_TIME", &cfg.MaxHoldTime)
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

// Validate checks the configuration invariants. Any error here refuses
// startup.
func (c Config) Validate() error {
	if c.RiskPerTradePct <= 0 || c.RiskPerTradePct >= 1 {
		return fmt.Errorf("risk_per_trade_pct must be in (0,1), got %v", c.RiskPerTradePct)
	}
	if c.MaxPositionSizePct <= 0 || c.MaxPositionSizePct >= 1 {
		return fmt.Errorf("max_position_size_pct must be in (0,1), got %v", c.MaxPositionSizePct)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive, got %d", c.MaxConcurrent)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("stop_loss_pct must be in (0,1), got %v", c.StopLossPct)
	}
	if c.TrailingStopPct <= 0 || c.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing_stop_pct must be in (0,1), got %v", c.TrailingStopPct)
	}
	if c.TrailingActivation <= 1 {
		return fmt.Errorf("trailing_activation must exceed 1.0, got %v", c.TrailingActivation)
	}
	if c.MaxHoldTime <= 0 {
		return fmt.Errorf("max_hold_time must be positive, got %v", c.MaxHoldTime)
	}
	if c.DailyLossLimitPct <= 0 || c.DailyLossLimitPct >= 1 {
		return fmt.Errorf("daily_loss_limit_pct must be in (0,1), got %v", c.DailyLossLimitPct)
	}
	if c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct >= 1 {
		return fmt.Errorf("max_drawdown_pct must be in (0,1), got %v", c.MaxDrawdownPct)
	}
	if c.DrawdownRecoveryPct <= 0 || c.DrawdownRecoveryPct >= c.MaxDrawdownPct {
		return fmt.Errorf("drawdown_recovery_pct must be in (0, max_drawdown_pct), got %v", c.DrawdownRecoveryPct)
	}

	if len(c.TakeProfitLadder) == 0 {
		return fmt.Errorf("take_profit_ladder must not be empty")
	}
	var sellSum float64
	prev := 1.0
	for i, lvl := range c.TakeProfitLadder {
		if lvl.Multiple <= prev {
			return fmt.Errorf("take_profit_ladder[%d]: multiple %v must be strictly increasing and above 1.0", i, lvl.Multiple)
		}
		if lvl.SellFraction <= 0 || lvl.SellFraction >= 1 {
			return fmt.Errorf("take_profit_ladder[%d]: sell_fraction must be in (0,1), got %v", i, lvl.SellFraction)
		}
		sellSum += lvl.SellFraction
		prev = lvl.Multiple
	}
	if c.MoonbagPct < 0 || c.MoonbagPct >= 1 {
		return fmt.Errorf("moonbag_pct must be in [0,1), got %v", c.MoonbagPct)
	}
	if sellSum+c.MoonbagPct > 1.0 {
		return fmt.Errorf("take-profit sell fractions (%.2f) plus moonbag (%.2f) exceed 1.0", sellSum, c.MoonbagPct)
	}

	if c.ExecMaxAttempts <= 0 {
		return fmt.Errorf("exec_max_attempts must be positive, got %d", c.ExecMaxAttempts)
	}

	return nil
}

// FirstTarget returns the lowest take-profit multiple. Valid only after
// Validate has passed.
func (c Config) FirstTarget() float64 {
	return c.TakeProfitLadder[0].Multiple
}
