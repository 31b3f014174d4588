package strategies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/perpsim/config"
	"github.com/quantfold/perpsim/market"
)

func TestBuildFamilies(t *testing.T) {
	rates := market.StaticRateSource{"BTC-PERP": 0.001}

	tests := []struct {
		family   string
		wantName string
	}{
		{"breakout", "breakout"},
		{"mean-reversion", "mean-reversion"},
		{"meanrevert", "mean-reversion"},
		{"carry", "carry"},
		{"funding", "carry"},
		{"Breakout", "breakout"}, // case-insensitive
	}
	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			cfg := config.Default().Strategy
			cfg.Family = tt.family
			cfg.RSIPeriod = 14
			cfg.Oversold = 30
			cfg.Overbought = 70
			cfg.ProfitBudget = 50
			cfg.LossBudget = 30
			cfg.MaxHoldBars = 20
			cfg.OpenThreshold = 0.0005
			cfg.CloseFraction = 0.5

			s, err := Build(cfg, rates, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

func TestBuildUnknownFamily(t *testing.T) {
	cfg := config.Default().Strategy
	cfg.Family = "martingale"
	_, err := Build(cfg, nil, nil)
	assert.Error(t, err)
}

func TestBuildCarryNeedsRates(t *testing.T) {
	cfg := config.Default().Strategy
	cfg.Family = "carry"
	cfg.OpenThreshold = 0.0005
	cfg.CloseFraction = 0.5
	_, err := Build(cfg, nil, nil)
	assert.Error(t, err)
}

func TestBuildInvalidParams(t *testing.T) {
	cfg := config.Default().Strategy
	cfg.Family = "breakout"
	cfg.Lookback = 0
	_, err := Build(cfg, nil, nil)
	assert.Error(t, err)
}
