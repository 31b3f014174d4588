package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

func bar(low, high string) market.Bar {
	return market.Bar{
		Symbol: "BTC-PERP",
		Time:   t0,
		Open:   dec(low),
		High:   dec(high),
		Low:    dec(low),
		Close:  dec(high),
		Volume: dec("100"),
	}
}

func openWithStops(t *testing.T, e *Engine, dir ledger.Direction, sl, tp string) *ledger.Position {
	t.Helper()
	pos, err := e.Open(context.Background(), OpenRequest{
		Symbol:     "BTC-PERP",
		Dir:        dir,
		Size:       dec("10"),
		Price:      dec("100"),
		StopLoss:   dec(sl),
		TakeProfit: dec(tp),
		Time:       t0,
	})
	require.NoError(t, err)
	return pos
}

func TestTriggersLong(t *testing.T) {
	tests := []struct {
		name       string
		low, high  string
		wantHit    bool
		wantReason ledger.CloseReason
		wantLevel  string
	}{
		{"no touch", "96", "104", false, "", ""},
		{"stop on low", "94", "99", true, ledger.ReasonStopLoss, "95"},
		{"stop at exact level", "95", "99", true, ledger.ReasonStopLoss, "95"},
		{"take on high", "101", "106", true, ledger.ReasonTakeProfit, "105"},
		{"gap crosses both, stop wins", "90", "110", true, ledger.ReasonStopLoss, "95"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			pos := openWithStops(t, e, ledger.Long, "95", "105")

			reason, level, hit := e.CheckRiskTriggers(pos, bar(tt.low, tt.high))
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.Equal(t, tt.wantReason, reason)
				assert.True(t, level.Equal(dec(tt.wantLevel)), "level = %s", level)
			}
		})
	}
}

func TestTriggersShort(t *testing.T) {
	tests := []struct {
		name       string
		low, high  string
		wantHit    bool
		wantReason ledger.CloseReason
		wantLevel  string
	}{
		{"no touch", "96", "104", false, "", ""},
		{"stop on high", "101", "106", true, ledger.ReasonStopLoss, "105"},
		{"take on low", "94", "99", true, ledger.ReasonTakeProfit, "95"},
		{"gap crosses both, stop wins", "90", "110", true, ledger.ReasonStopLoss, "105"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			pos := openWithStops(t, e, ledger.Short, "105", "95")

			reason, level, hit := e.CheckRiskTriggers(pos, bar(tt.low, tt.high))
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit {
				assert.Equal(t, tt.wantReason, reason)
				assert.True(t, level.Equal(dec(tt.wantLevel)), "level = %s", level)
			}
		})
	}
}

func TestTriggerFillsAtLevelNotExtreme(t *testing.T) {
	e := newTestEngine(t)
	pos := openWithStops(t, e, ledger.Long, "95", "105")

	reason, level, hit := e.CheckRiskTriggers(pos, bar("90", "99"))
	require.True(t, hit)
	require.Equal(t, ledger.ReasonStopLoss, reason)

	trade, err := e.Close(context.Background(), pos, level, t0, reason)
	require.NoError(t, err)

	// Exit derives from the trigger level (95 · 0.999), not the bar low.
	assert.True(t, trade.Exit.Equal(dec("94.905")), "exit = %s", trade.Exit)
}

func TestTrailingStopReportsItsOwnReason(t *testing.T) {
	e := newTestEngine(t)
	pos, err := e.Open(context.Background(), OpenRequest{
		Symbol:          "BTC-PERP",
		Dir:             ledger.Long,
		Size:            dec("10"),
		Price:           dec("100"),
		TrailingStopPct: dec("0.02"),
		Time:            t0,
	})
	require.NoError(t, err)

	e.MarkToMarket(pos, dec("110")) // stop ratchets to 107.8

	reason, level, hit := e.CheckRiskTriggers(pos, bar("107", "109"))
	require.True(t, hit)
	assert.Equal(t, ledger.ReasonTrailingStop, reason)
	assert.True(t, level.Equal(dec("107.8")))
}

func TestNoTriggersWithoutStops(t *testing.T) {
	e := newTestEngine(t)
	pos := openLong(t, e, "10", "100")

	_, _, hit := e.CheckRiskTriggers(pos, bar("50", "200"))
	assert.False(t, hit)
}
