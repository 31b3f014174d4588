package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/perpsim/ledger"
)

func tradeWithNet(net, fees string) *ledger.Trade {
	return &ledger.Trade{
		Account: "bt-1", Symbol: "BTC-PERP",
		NetPnL: dec(net), Fees: dec(fees),
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(dec("10000"), nil)
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.ProfitFactor)
	assert.True(t, s.MaxDrawdown.IsZero())
}

func TestComputeMixedTrades(t *testing.T) {
	trades := []*ledger.Trade{
		tradeWithNet("100", "1"),
		tradeWithNet("-40", "1"),
		tradeWithNet("60", "1"),
		tradeWithNet("-20", "1"),
	}
	s := Compute(dec("10000"), trades)

	assert.Equal(t, 4, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InEpsilon(t, 0.5, s.WinRate, 1e-9)

	assert.True(t, s.NetPnL.Equal(dec("100")))
	assert.True(t, s.Fees.Equal(dec("4")))
	assert.True(t, s.GrossWins.Equal(dec("160")))
	assert.True(t, s.GrossLosses.Equal(dec("60")))
	assert.InEpsilon(t, 160.0/60.0, s.ProfitFactor, 1e-9)

	assert.True(t, s.AvgWin.Equal(dec("80")))
	assert.True(t, s.AvgLoss.Equal(dec("30")))
	assert.True(t, s.LargestWin.Equal(dec("100")))
	assert.True(t, s.LargestLoss.Equal(dec("40")))

	// Equity path: 10100, 10060, 10120, 10100. The deepest dip is 40
	// below the 10100 peak.
	assert.True(t, s.MaxDrawdown.Equal(dec("40")), "drawdown = %s", s.MaxDrawdown)
}

func TestComputeNoLosersProfitFactorIsInf(t *testing.T) {
	s := Compute(dec("10000"), []*ledger.Trade{tradeWithNet("10", "1")})
	assert.True(t, math.IsInf(s.ProfitFactor, 1))
}

func TestComputeDrawdownSpansConsecutiveLosses(t *testing.T) {
	trades := []*ledger.Trade{
		tradeWithNet("50", "0"),
		tradeWithNet("-30", "0"),
		tradeWithNet("-30", "0"),
		tradeWithNet("10", "0"),
	}
	s := Compute(dec("1000"), trades)
	assert.True(t, s.MaxDrawdown.Equal(dec("60")), "drawdown = %s", s.MaxDrawdown)
}
