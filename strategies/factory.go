package strategies

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/config"
	"github.com/quantfold/perpsim/market"
)

// Build constructs the strategy named by cfg.Family. The carry family
// requires a funding-rate source; the directional families accept an
// optional sentiment source, which may be nil.
func Build(cfg config.Strategy, rates market.RateSource, sentiment SentimentSource) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Family)) {
	case "breakout":
		bc := BreakoutConfig{
			Lookback:       cfg.Lookback,
			VolumeMult:     cfg.VolumeMult,
			StopLossPct:    cfg.StopLossPct,
			TakeProfitPct:  cfg.TakeProfitPct,
			ContractionPct: cfg.ContractionPct,
			CooldownBars:   cfg.CooldownBars,
		}
		return NewBreakout(bc, sentiment)

	case "mean-reversion", "meanrevert":
		mc := MeanReversionConfig{
			RSIPeriod:    cfg.RSIPeriod,
			Oversold:     cfg.Oversold,
			Overbought:   cfg.Overbought,
			ProfitBudget: decimal.NewFromFloat(cfg.ProfitBudget),
			LossBudget:   decimal.NewFromFloat(cfg.LossBudget),
			MaxHoldBars:  cfg.MaxHoldBars,
			CooldownBars: cfg.CooldownBars,
		}
		return NewMeanReversion(mc, sentiment)

	case "carry", "funding":
		cc := CarryConfig{
			OpenThreshold: cfg.OpenThreshold,
			CloseFraction: cfg.CloseFraction,
			CooldownBars:  cfg.CooldownBars,
		}
		return NewCarry(cc, rates)

	default:
		return nil, fmt.Errorf("unknown strategy family %q", cfg.Family)
	}
}
