package strategies

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/indicators"
	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

// MeanReversionConfig parameterizes the oscillator mean-reversion family.
type MeanReversionConfig struct {
	RSIPeriod  int
	Oversold   float64 // long entries below this RSI
	Overbought float64 // short entries above this RSI

	// Exit budgets in account currency, both positive.
	ProfitBudget decimal.Decimal
	LossBudget   decimal.Decimal

	MaxHoldBars  int // hard exit after this many bars in the trade
	CooldownBars int
}

func (c MeanReversionConfig) Validate() error {
	if c.RSIPeriod < 2 {
		return fmt.Errorf("mean-reversion: rsi-period must be >= 2, got %d", c.RSIPeriod)
	}
	if c.Oversold <= 0 || c.Oversold >= 50 {
		return fmt.Errorf("mean-reversion: oversold must be in (0,50), got %v", c.Oversold)
	}
	if c.Overbought <= 50 || c.Overbought >= 100 {
		return fmt.Errorf("mean-reversion: overbought must be in (50,100), got %v", c.Overbought)
	}
	if !c.ProfitBudget.IsPositive() {
		return fmt.Errorf("mean-reversion: profit-budget must be positive, got %s", c.ProfitBudget)
	}
	if !c.LossBudget.IsPositive() {
		return fmt.Errorf("mean-reversion: loss-budget must be positive, got %s", c.LossBudget)
	}
	if c.MaxHoldBars < 1 {
		return fmt.Errorf("mean-reversion: max-hold-bars must be >= 1, got %d", c.MaxHoldBars)
	}
	if c.CooldownBars < 0 {
		return fmt.Errorf("mean-reversion: cooldown-bars must be >= 0, got %d", c.CooldownBars)
	}
	return nil
}

// MeanReversion fades an overbought/oversold RSI reading when the last
// bar shows the directional impulse failing to hold, and exits on a
// fixed currency profit/loss budget or a maximum holding duration.
type MeanReversion struct {
	cfg       MeanReversionConfig
	sentiment SentimentSource // optional
	gate      cooldown
}

func NewMeanReversion(cfg MeanReversionConfig, sentiment SentimentSource) (*MeanReversion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MeanReversion{cfg: cfg, sentiment: sentiment, gate: cooldown{bars: cfg.CooldownBars}}, nil
}

func (m *MeanReversion) Name() string { return "mean-reversion" }

func (m *MeanReversion) MinBars() int { return m.cfg.RSIPeriod + 1 }

func (m *MeanReversion) Evaluate(ctx context.Context, s *market.Series, pos *ledger.Position) (Decision, error) {
	blocked := m.gate.blocked(s, pos)
	if s.Len() < m.MinBars() {
		return Hold(), nil
	}

	if pos != nil {
		if pos.UnrealizedPnL.GreaterThanOrEqual(m.cfg.ProfitBudget) {
			return ClosePosition(ledger.ReasonSignal), nil
		}
		if pos.UnrealizedPnL.LessThanOrEqual(m.cfg.LossBudget.Neg()) {
			return ClosePosition(ledger.ReasonSignal), nil
		}
		held := s.Last().Time.Sub(pos.OpenTime)
		if held >= time.Duration(m.cfg.MaxHoldBars)*s.Granularity {
			return ClosePosition(ledger.ReasonSignal), nil
		}
		return Hold(), nil
	}

	if blocked {
		return Hold(), nil
	}

	rsi, err := indicators.RSI(s.Closes(), m.cfg.RSIPeriod)
	if err != nil {
		return Hold(), err
	}

	// The reversal bar shows the impulse is unsustained: the bar that
	// pushed the oscillator to an extreme closes back against the move.
	last := s.Last()
	bounced := last.Close.GreaterThan(last.Open)
	faded := last.Close.LessThan(last.Open)

	var dir ledger.Direction
	var confidence float64
	switch {
	case rsi <= m.cfg.Oversold && bounced:
		dir, confidence = ledger.Long, entryConfidence(m.cfg.Oversold-rsi)
	case rsi >= m.cfg.Overbought && faded:
		dir, confidence = ledger.Short, entryConfidence(rsi-m.cfg.Overbought)
	default:
		return Hold(), nil
	}

	if m.sentiment != nil {
		if sent, err := m.sentiment.Sentiment(ctx, s.Symbol); err == nil {
			confidence = adjustConfidence(confidence, dir, sent)
		}
	}
	return OpenPosition(dir, confidence, decimal.Zero, decimal.Zero), nil
}

// entryConfidence maps how far past the threshold the oscillator sits
// onto [0.5, 1.0].
func entryConfidence(excess float64) float64 {
	c := 0.5 + excess/40
	if c > 1 {
		return 1
	}
	return c
}
