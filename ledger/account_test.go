package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewAccountStartsAtEquity(t *testing.T) {
	a := NewAccount("a1", dec("10000"), dec("2"), dec("0.0002"), dec("0.0005"))
	assert.True(t, a.Balance.Equal(dec("10000")))
	assert.True(t, a.PeakEquity.Equal(dec("10000")))
	assert.Zero(t, a.WinRate())
}

func TestAccountReset(t *testing.T) {
	a := NewAccount("a1", dec("10000"), dec("2"), dec("0.0002"), dec("0.0005"))
	a.Balance = dec("9000")
	a.RealizedPnL = dec("-1000")
	a.TradeCount = 7
	a.WinCount = 2
	a.MaxDrawdown = dec("0.1")

	a.Reset()
	assert.True(t, a.Balance.Equal(dec("10000")))
	assert.True(t, a.RealizedPnL.IsZero())
	assert.Zero(t, a.TradeCount)
	assert.True(t, a.MaxDrawdown.IsZero())
}

func TestObserveEquityTracksDrawdown(t *testing.T) {
	a := NewAccount("a1", dec("10000"), dec("2"), dec("0.0002"), dec("0.0005"))

	a.ObserveEquity(dec("11000"))
	assert.True(t, a.PeakEquity.Equal(dec("11000")))
	assert.True(t, a.MaxDrawdown.IsZero())

	// 10% off the 11000 peak.
	a.ObserveEquity(dec("9900"))
	assert.True(t, a.MaxDrawdown.Equal(dec("0.1")), "dd = %s", a.MaxDrawdown)

	// Shallower dips never shrink the max.
	a.ObserveEquity(dec("10500"))
	assert.True(t, a.MaxDrawdown.Equal(dec("0.1")))
}

func TestPositionUnrealized(t *testing.T) {
	long := &Position{Dir: Long, Size: dec("10"), Entry: dec("100")}
	assert.True(t, long.Unrealized(dec("105")).Equal(dec("50")))
	assert.True(t, long.Unrealized(dec("95")).Equal(dec("-50")))

	short := &Position{Dir: Short, Size: dec("10"), Entry: dec("100")}
	assert.True(t, short.Unrealized(dec("95")).Equal(dec("50")))
	assert.True(t, short.Unrealized(dec("105")).Equal(dec("-50")))
}

func TestTradeHolding(t *testing.T) {
	open := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := &Trade{OpenTime: open, CloseTime: open.Add(90 * time.Minute)}
	assert.Equal(t, 90*time.Minute, tr.Holding())
}

func TestKindForClose(t *testing.T) {
	assert.Equal(t, OrderStopLoss, KindForClose(ReasonStopLoss))
	assert.Equal(t, OrderStopLoss, KindForClose(ReasonTrailingStop))
	assert.Equal(t, OrderTakeProfit, KindForClose(ReasonTakeProfit))
	assert.Equal(t, OrderClose, KindForClose(ReasonSignal))
	assert.Equal(t, OrderClose, KindForClose(ReasonEndOfData))
}

func TestDirectionRoundTrip(t *testing.T) {
	assert.Equal(t, Long, ParseDirection(Long.String()))
	assert.Equal(t, Short, ParseDirection(Short.String()))
	assert.True(t, Short.Sign().Equal(dec("-1")))
}
