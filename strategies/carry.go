package strategies

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

// CarryConfig parameterizes the rate-differential family: collect the
// periodic funding rate rather than betting on price direction.
type CarryConfig struct {
	OpenThreshold float64 // open while |rate| exceeds this
	CloseFraction float64 // close when |rate| decays below fraction·threshold
	CooldownBars  int
}

func (c CarryConfig) Validate() error {
	if c.OpenThreshold <= 0 {
		return fmt.Errorf("carry: open-threshold must be positive, got %v", c.OpenThreshold)
	}
	if c.CloseFraction <= 0 || c.CloseFraction >= 1 {
		return fmt.Errorf("carry: close-fraction must be in (0,1), got %v", c.CloseFraction)
	}
	if c.CooldownBars < 0 {
		return fmt.Errorf("carry: cooldown-bars must be >= 0, got %d", c.CooldownBars)
	}
	return nil
}

// Carry opens against the paying side of the funding rate while the
// differential exceeds the threshold and closes when it decays below a
// fraction of it or flips sign. A missing rate reading is a Hold, not a
// fault.
type Carry struct {
	cfg   CarryConfig
	rates market.RateSource
	gate  cooldown
}

func NewCarry(cfg CarryConfig, rates market.RateSource) (*Carry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rates == nil {
		return nil, fmt.Errorf("carry: rate source is required")
	}
	return &Carry{cfg: cfg, rates: rates, gate: cooldown{bars: cfg.CooldownBars}}, nil
}

func (c *Carry) Name() string { return "carry" }

func (c *Carry) MinBars() int { return 1 }

func (c *Carry) Evaluate(ctx context.Context, s *market.Series, pos *ledger.Position) (Decision, error) {
	blocked := c.gate.blocked(s, pos)
	if s.Len() < c.MinBars() {
		return Hold(), nil
	}

	rate, err := c.rates.Rate(ctx, s.Symbol)
	if err != nil {
		// Degraded collaborator: skip this evaluation.
		return Hold(), nil
	}

	if pos != nil {
		decayed := math.Abs(rate) < c.cfg.CloseFraction*c.cfg.OpenThreshold
		// The position collects funding while the rate pays its side;
		// a sign flip means it now pays instead.
		flipped := rate*float64(pos.Dir) > 0
		if decayed || flipped {
			return ClosePosition(ledger.ReasonSignal), nil
		}
		return Hold(), nil
	}

	if blocked || math.Abs(rate) < c.cfg.OpenThreshold {
		return Hold(), nil
	}

	// Positive funding: longs pay shorts, so collect by being short.
	dir := ledger.Short
	if rate < 0 {
		dir = ledger.Long
	}

	confidence := 0.5 + math.Min(math.Abs(rate)/(4*c.cfg.OpenThreshold), 0.5)
	return OpenPosition(dir, confidence, decimal.Zero, decimal.Zero), nil
}
