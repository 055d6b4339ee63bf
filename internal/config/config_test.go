package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefault_LadderAllocation(t *testing.T) {
	cfg := Default()

	var sum float64
	for _, lvl := range cfg.TakeProfitLadder {
		sum += lvl.SellFraction
	}
	if sum+cfg.MoonbagPct > 1.0 {
		t.Fatalf("ladder fractions (%.2f) plus moonbag (%.2f) over-allocate the position",
			sum, cfg.MoonbagPct)
	}
}

func TestValidate_LadderSumExceedsOne(t *testing.T) {
	cfg := Default()
	cfg.TakeProfitLadder = []TakeProfitLevel{
		{Multiple: 2.0, SellFraction: 0.5},
		{Multiple: 5.0, SellFraction: 0.45},
	}
	cfg.MoonbagPct = 0.10

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when sell fractions + moonbag > 1.0")
	}
}

func TestValidate_EmptyLadder(t *testing.T) {
	cfg := Default()
	cfg.TakeProfitLadder = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty ladder")
	}
}

func TestValidate_NonIncreasingLadder(t *testing.T) {
	cfg := Default()
	cfg.TakeProfitLadder = []TakeProfitLevel{
		{Multiple: 5.0, SellFraction: 0.25},
		{Multiple: 2.0, SellFraction: 0.25},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-increasing multiples")
	}
}

func TestValidate_RecoveryAboveDrawdown(t *testing.T) {
	cfg := Default()
	cfg.DrawdownRecoveryPct = 0.20 // above MaxDrawdownPct 0.15

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when recovery >= max drawdown")
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("max_concurrent: 3\nstop_loss_pct: 0.20\nmax_hold_time: 1h\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MaxConcurrent != 3 {
		t.Errorf("max_concurrent = %d, want 3", cfg.MaxConcurrent)
	}
	if cfg.StopLossPct != 0.20 {
		t.Errorf("stop_loss_pct = %v, want 0.20", cfg.StopLossPct)
	}
	if cfg.MaxHoldTime.Std() != time.Hour {
		t.Errorf("max_hold_time = %v, want 1h", cfg.MaxHoldTime)
	}
	// Untouched fields keep defaults
	if cfg.RiskPerTradePct != 0.015 {
		t.Errorf("risk_per_trade_pct = %v, want default 0.015", cfg.RiskPerTradePct)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SNIPER_MAX_CONCURRENT", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxConcurrent != 2 {
		t.Errorf("max_concurrent = %d, want 2 from env", cfg.MaxConcurrent)
	}
}

func TestLoad_InvalidFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	// Ladder that over-allocates must refuse startup.
	data := []byte(`take_profit_ladder:
  - {multiple: 2.0, sell_fraction: 0.6}
  - {multiple: 5.0, sell_fraction: 0.5}
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
