package strategies

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/indicators"
	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

// BreakoutConfig parameterizes the threshold-breakout family.
type BreakoutConfig struct {
	Lookback       int     // rolling support/resistance window
	VolumeMult     float64 // breakout bar volume vs window average
	StopLossPct    float64 // protective stop distance from entry
	TakeProfitPct  float64 // target distance from entry
	ContractionPct float64 // exit when band width shrinks below this fraction of the entry-time width
	CooldownBars   int
}

func (c BreakoutConfig) Validate() error {
	if c.Lookback < 2 {
		return fmt.Errorf("breakout: lookback must be >= 2, got %d", c.Lookback)
	}
	if c.VolumeMult <= 0 {
		return fmt.Errorf("breakout: volume-mult must be positive, got %v", c.VolumeMult)
	}
	if c.StopLossPct <= 0 || c.StopLossPct >= 1 {
		return fmt.Errorf("breakout: stop-loss-pct must be in (0,1), got %v", c.StopLossPct)
	}
	if c.TakeProfitPct <= 0 || c.TakeProfitPct >= 1 {
		return fmt.Errorf("breakout: take-profit-pct must be in (0,1), got %v", c.TakeProfitPct)
	}
	if c.ContractionPct <= 0 || c.ContractionPct >= 1 {
		return fmt.Errorf("breakout: contraction-pct must be in (0,1), got %v", c.ContractionPct)
	}
	if c.CooldownBars < 0 {
		return fmt.Errorf("breakout: cooldown-bars must be >= 0, got %d", c.CooldownBars)
	}
	return nil
}

// Breakout trades price escaping a rolling support/resistance band with
// volume confirmation, and exits when the range contracts. A sentiment
// source, when wired, scales signal confidence; its failures are
// ignored.
type Breakout struct {
	cfg       BreakoutConfig
	sentiment SentimentSource

	gate cooldown

	// entryWidth records the band width at entry per symbol; the
	// contraction exit compares against the width of that symbol's own
	// entry, never a neighbor's.
	entryWidth map[string]float64
}

// NewBreakout validates cfg once at construction. sentiment may be nil.
func NewBreakout(cfg BreakoutConfig, sentiment SentimentSource) (*Breakout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Breakout{
		cfg:        cfg,
		sentiment:  sentiment,
		gate:       cooldown{bars: cfg.CooldownBars},
		entryWidth: make(map[string]float64),
	}, nil
}

func (b *Breakout) Name() string { return "breakout" }

func (b *Breakout) MinBars() int { return b.cfg.Lookback + 1 }

func (b *Breakout) Evaluate(ctx context.Context, s *market.Series, pos *ledger.Position) (Decision, error) {
	blocked := b.gate.blocked(s, pos)
	if s.Len() < b.MinBars() {
		return Hold(), nil
	}

	window := s.LastN(b.cfg.Lookback + 1)
	prior := window[:b.cfg.Lookback] // band excludes the bar under test
	cur := window[b.cfg.Lookback]

	highs := make([]float64, len(prior))
	lows := make([]float64, len(prior))
	vols := make([]float64, len(prior))
	for i, bar := range prior {
		highs[i] = bar.High.InexactFloat64()
		lows[i] = bar.Low.InexactFloat64()
		vols[i] = bar.Volume.InexactFloat64()
	}

	band, err := indicators.Channel(highs, lows, b.cfg.Lookback)
	if err != nil {
		return Hold(), err
	}

	if pos != nil {
		// Range contraction ends the trend trade.
		curBand := bandIncluding(band, cur)
		if w := b.entryWidth[s.Symbol]; w > 0 && curBand.Width() < b.cfg.ContractionPct*w {
			return ClosePosition(ledger.ReasonSignal), nil
		}
		return Hold(), nil
	}

	if blocked {
		return Hold(), nil
	}

	avgVol, err := indicators.SMA(vols, b.cfg.Lookback)
	if err != nil {
		return Hold(), err
	}
	confirmed := cur.Volume.InexactFloat64() > b.cfg.VolumeMult*avgVol
	if !confirmed {
		return Hold(), nil
	}

	close := cur.Close.InexactFloat64()
	var dir ledger.Direction
	switch {
	case close > band.High:
		dir = ledger.Long
	case close < band.Low:
		dir = ledger.Short
	default:
		return Hold(), nil
	}

	confidence := 0.6
	if b.sentiment != nil {
		if sent, err := b.sentiment.Sentiment(ctx, s.Symbol); err == nil {
			confidence = adjustConfidence(confidence, dir, sent)
		}
	}

	slMul := decimal.NewFromFloat(1 - float64(dir)*b.cfg.StopLossPct)
	tpMul := decimal.NewFromFloat(1 + float64(dir)*b.cfg.TakeProfitPct)

	b.entryWidth[s.Symbol] = band.Width()
	return OpenPosition(dir, confidence, cur.Close.Mul(slMul), cur.Close.Mul(tpMul)), nil
}

func bandIncluding(prior indicators.Band, cur market.Bar) indicators.Band {
	b := prior
	if h := cur.High.InexactFloat64(); h > b.High {
		b.High = h
	}
	if l := cur.Low.InexactFloat64(); l < b.Low {
		b.Low = l
	}
	return b
}
