package admission

import (
	"strings"
	"testing"

	"pump-sniper/internal/config"
	"pump-sniper/internal/domain"
)

type fakeGate struct {
	allowed bool
	balance float64
}

func (g *fakeGate) TradingAllowed() bool { return g.allowed }
func (g *fakeGate) Balance() float64     { return g.balance }

type fakeOpenSet struct {
	count int
	mints map[string]bool
}

func (s *fakeOpenSet) OpenCount() int           { return s.count }
func (s *fakeOpenSet) HasOpen(mint string) bool { return s.mints[mint] }

func newController(balance float64) (*Controller, *fakeGate, *fakeOpenSet) {
	gate := &fakeGate{allowed: true, balance: balance}
	open := &fakeOpenSet{mints: map[string]bool{}}
	return New(config.Default(), gate, open), gate, open
}

func candidate(mint string, price float64) domain.TokenCandidate {
	return domain.TokenCandidate{Mint: mint, Symbol: "TEST", PriceSOL: price}
}

func TestEvaluate_SizingAgainstLimits(t *testing.T) {
	// balance = 10, risk 1.5% => 0.15, max position 10% => 1.0,
	// available 0.5 => size = min(0.15, 1.0, 0.5) = 0.15.
	ctrl, _, _ := newController(10)

	d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5)
	if !d.Approved {
		t.Fatalf("expected approval, got %q", d.RejectReason)
	}
	if d.SizeSOL != 0.15 {
		t.Errorf("size = %v, want 0.15", d.SizeSOL)
	}
	if d.StopPrice != 0.85 {
		t.Errorf("stop = %v, want 0.85", d.StopPrice)
	}
}

func TestEvaluate_RewardRiskGate(t *testing.T) {
	// entry 1.0, stop 15% => risk 0.15; first target 2.0x => reward 1.0;
	// ratio 6.67 passes the 2.0 floor.
	ctrl, _, _ := newController(100)
	d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 5)
	if !d.Approved {
		t.Fatalf("expected approval, got %q", d.RejectReason)
	}

	// Tighten the first target until the ratio fails: target 1.2x gives
	// reward 0.2 over risk 0.15 => 1.33 < 2.0.
	cfg := config.Default()
	cfg.TakeProfitLadder = []config.TakeProfitLevel{{Multiple: 1.2, SellFraction: 0.25}}
	gate := &fakeGate{allowed: true, balance: 100}
	ctrl = New(cfg, gate, &fakeOpenSet{mints: map[string]bool{}})

	d = ctrl.Evaluate(candidate("mintA", 1.0), 80, 5)
	if d.Approved {
		t.Fatal("expected reward/risk rejection")
	}
	if !strings.Contains(d.RejectReason, "reward/risk") {
		t.Errorf("unexpected reject reason %q", d.RejectReason)
	}
}

func TestEvaluate_ShortCircuitOrder(t *testing.T) {
	ctrl, gate, open := newController(10)

	// Low score fires before everything else.
	d := ctrl.Evaluate(candidate("mintA", 1.0), 10, 0.5)
	if d.Approved || !strings.Contains(d.RejectReason, "quality score") {
		t.Errorf("want quality-score rejection, got %+v", d)
	}

	// Halted breaker fires before concurrency/duplicate checks.
	gate.allowed = false
	open.count = 99
	d = ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5)
	if d.Approved || !strings.Contains(d.RejectReason, "circuit breaker") {
		t.Errorf("want circuit-breaker rejection, got %+v", d)
	}

	// Concurrency fires before duplicate.
	gate.allowed = true
	open.mints["mintA"] = true
	d = ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5)
	if d.Approved || !strings.Contains(d.RejectReason, "max concurrent") {
		t.Errorf("want concurrency rejection, got %+v", d)
	}

	// Duplicate mint.
	open.count = 0
	d = ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5)
	if d.Approved || !strings.Contains(d.RejectReason, "already holding") {
		t.Errorf("want duplicate rejection, got %+v", d)
	}
}

func TestEvaluate_RejectCodes(t *testing.T) {
	ctrl, gate, open := newController(10)

	if d := ctrl.Evaluate(candidate("mintA", 1.0), 10, 0.5); d.RejectCode != RejectScore {
		t.Errorf("code = %q, want %q", d.RejectCode, RejectScore)
	}

	gate.allowed = false
	if d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5); d.RejectCode != RejectHalted {
		t.Errorf("code = %q, want %q", d.RejectCode, RejectHalted)
	}
	gate.allowed = true

	open.count = 99
	if d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5); d.RejectCode != RejectConcurrent {
		t.Errorf("code = %q, want %q", d.RejectCode, RejectConcurrent)
	}
	open.count = 0

	open.mints["mintA"] = true
	if d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5); d.RejectCode != RejectDuplicate {
		t.Errorf("code = %q, want %q", d.RejectCode, RejectDuplicate)
	}
	delete(open.mints, "mintA")

	if d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.01); d.RejectCode != RejectSize {
		t.Errorf("code = %q, want %q", d.RejectCode, RejectSize)
	}

	if d := ctrl.Evaluate(candidate("mintA", 0), 80, 5); d.RejectCode != RejectNoPrice {
		t.Errorf("code = %q, want %q", d.RejectCode, RejectNoPrice)
	}

	// Approval carries no code.
	if d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 5); !d.Approved || d.RejectCode != "" {
		t.Errorf("want clean approval, got %+v", d)
	}
}

func TestEvaluate_MinimumSize(t *testing.T) {
	// balance = 1 SOL: risk sizing yields 0.015, below the 0.1 floor.
	ctrl, _, _ := newController(1)
	d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 5)
	if d.Approved || !strings.Contains(d.RejectReason, "below minimum") {
		t.Errorf("want size rejection, got %+v", d)
	}
}

func TestEvaluate_NoPrice(t *testing.T) {
	ctrl, _, _ := newController(100)
	d := ctrl.Evaluate(candidate("mintA", 0), 80, 5)
	if d.Approved {
		t.Fatal("zero-price candidate must be rejected")
	}
}

func TestEvaluate_DoesNotMutateState(t *testing.T) {
	ctrl, _, open := newController(10)

	for i := 0; i < 3; i++ {
		d := ctrl.Evaluate(candidate("mintA", 1.0), 80, 0.5)
		if !d.Approved {
			t.Fatalf("evaluation %d: %q", i, d.RejectReason)
		}
	}
	if open.count != 0 {
		t.Error("Evaluate must not open positions")
	}
}
