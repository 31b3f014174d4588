package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var seriesStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type testBar struct {
	open, high, low, close, volume string
}

func buildSeries(t *testing.T, bars []testBar) *market.Series {
	t.Helper()
	s := market.NewSeries("BTC-PERP", time.Minute)
	for i, b := range bars {
		err := s.Append(market.Bar{
			Symbol: "BTC-PERP",
			Time:   seriesStart.Add(time.Duration(i) * time.Minute),
			Open:   dec(b.open),
			High:   dec(b.high),
			Low:    dec(b.low),
			Close:  dec(b.close),
			Volume: dec(b.volume),
		})
		require.NoError(t, err)
	}
	return s
}

// rangeBars yields n identical in-band bars: 95..105, volume 100.
func rangeBars(n int) []testBar {
	bars := make([]testBar, n)
	for i := range bars {
		bars[i] = testBar{"100", "105", "95", "100", "100"}
	}
	return bars
}

func breakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		Lookback:       5,
		VolumeMult:     1.5,
		StopLossPct:    0.02,
		TakeProfitPct:  0.04,
		ContractionPct: 0.4,
		CooldownBars:   2,
	}
}

func TestBreakoutLongEntry(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	bars := append(rangeBars(5), testBar{"105", "110", "104", "110", "200"})
	s := buildSeries(t, bars)

	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)

	assert.Equal(t, ActionOpen, d.Action)
	assert.Equal(t, ledger.Long, d.Dir)
	assert.InEpsilon(t, 0.6, d.Confidence, 1e-9)
	assert.True(t, d.StopLoss.Equal(dec("110").Mul(dec("0.98"))), "sl = %s", d.StopLoss)
	assert.True(t, d.TakeProfit.Equal(dec("110").Mul(dec("1.04"))), "tp = %s", d.TakeProfit)
}

func TestBreakoutShortEntry(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	bars := append(rangeBars(5), testBar{"95", "96", "90", "90", "200"})
	s := buildSeries(t, bars)

	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionOpen, d.Action)
	assert.Equal(t, ledger.Short, d.Dir)
}

func TestBreakoutRequiresVolumeConfirmation(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	// Breaks the band but volume is only average.
	bars := append(rangeBars(5), testBar{"105", "110", "104", "110", "100"})
	s := buildSeries(t, bars)

	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
}

func TestBreakoutHoldsInsideBand(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	bars := append(rangeBars(5), testBar{"100", "104", "96", "103", "200"})
	s := buildSeries(t, bars)

	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
}

func TestBreakoutHoldsDuringWarmup(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	s := buildSeries(t, rangeBars(3))
	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
}

func TestBreakoutExitsOnContraction(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	// Enter first so the entry-time band width (10) is recorded.
	entryBars := append(rangeBars(5), testBar{"105", "110", "104", "110", "200"})
	s := buildSeries(t, entryBars)
	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	require.Equal(t, ActionOpen, d.Action)

	pos := &ledger.Position{ID: "p1", Symbol: "BTC-PERP", Dir: ledger.Long}

	// Width 3 < 0.4 · 10: the range has died.
	tight := make([]testBar, 6)
	for i := range tight {
		tight[i] = testBar{"100", "102", "99", "100", "100"}
	}
	s = buildSeries(t, tight)

	d, err = b.Evaluate(context.Background(), s, pos)
	require.NoError(t, err)
	assert.Equal(t, ActionClose, d.Action)
	assert.Equal(t, ledger.ReasonSignal, d.Reason)
}

func TestBreakoutHoldsWhileRangePersists(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	entryBars := append(rangeBars(5), testBar{"105", "110", "104", "110", "200"})
	s := buildSeries(t, entryBars)
	_, err = b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)

	pos := &ledger.Position{ID: "p1", Symbol: "BTC-PERP", Dir: ledger.Long}
	d, err := b.Evaluate(context.Background(), s, pos)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
}

type staticSentiment struct {
	s Sentiment
}

func (ss staticSentiment) Sentiment(context.Context, string) (Sentiment, error) {
	return ss.s, nil
}

func TestBreakoutSentimentScalesConfidence(t *testing.T) {
	// Bearish reading against a long breakout lowers confidence.
	b, err := NewBreakout(breakoutConfig(), staticSentiment{Sentiment{Score: -1, Confidence: 1}})
	require.NoError(t, err)

	bars := append(rangeBars(5), testBar{"105", "110", "104", "110", "200"})
	s := buildSeries(t, bars)

	d, err := b.Evaluate(context.Background(), s, nil)
	require.NoError(t, err)
	require.Equal(t, ActionOpen, d.Action)
	assert.InEpsilon(t, 0.4, d.Confidence, 1e-9)
}

func TestBreakoutConfigValidation(t *testing.T) {
	cfg := breakoutConfig()
	cfg.Lookback = 1
	_, err := NewBreakout(cfg, nil)
	assert.Error(t, err)

	cfg = breakoutConfig()
	cfg.StopLossPct = 0
	_, err = NewBreakout(cfg, nil)
	assert.Error(t, err)

	cfg = breakoutConfig()
	cfg.ContractionPct = 1.5
	_, err = NewBreakout(cfg, nil)
	assert.Error(t, err)
}

func TestBreakoutContractionExitIsPerSymbol(t *testing.T) {
	b, err := NewBreakout(breakoutConfig(), nil)
	require.NoError(t, err)

	// Entry on the first symbol records that symbol's band width.
	bars := append(rangeBars(5), testBar{"105", "110", "104", "110", "200"})
	first := buildSeries(t, bars)
	d, err := b.Evaluate(context.Background(), first, nil)
	require.NoError(t, err)
	require.Equal(t, ActionOpen, d.Action)

	// A second symbol trading a much narrower range has no recorded
	// entry width of its own, so the first symbol's width must not
	// force a contraction exit here.
	narrow := market.NewSeries("ETH-PERP", time.Minute)
	for i := 0; i < 6; i++ {
		require.NoError(t, narrow.Append(market.Bar{
			Symbol: "ETH-PERP",
			Time:   seriesStart.Add(time.Duration(i) * time.Minute),
			Open:   dec("100"), High: dec("101"), Low: dec("100"), Close: dec("100.5"),
			Volume: dec("100"),
		}))
	}
	pos := &ledger.Position{ID: "p2", Symbol: "ETH-PERP", Dir: ledger.Long}
	d, err = b.Evaluate(context.Background(), narrow, pos)
	require.NoError(t, err)
	assert.Equal(t, ActionHold, d.Action)
}
