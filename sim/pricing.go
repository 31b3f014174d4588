package sim

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

var one = decimal.NewFromInt(1)

// fillPrice derives the simulated fill from a reference price: slippage
// is applied in the unfavorable direction for the requested side, then
// the result is snapped to the instrument tick before any PnL math.
func fillPrice(ref decimal.Decimal, dir ledger.Direction, closing bool, slippage, tick decimal.Decimal) decimal.Decimal {
	adverse := slippage.Mul(dir.Sign())
	var px decimal.Decimal
	if closing {
		// Exits fill against the position: longs sell lower, shorts buy higher.
		px = ref.Mul(one.Sub(adverse))
	} else {
		// Entries fill against the order: longs buy higher, shorts sell lower.
		px = ref.Mul(one.Add(adverse))
	}
	return market.RoundToTick(px, tick)
}

// takerFee returns the fee charged on a market fill of the given notional.
func takerFee(notional, rate decimal.Decimal) decimal.Decimal {
	return notional.Mul(rate)
}

// grossPnL computes (exit − entry) · size · sign(direction).
func grossPnL(entry, exit, size decimal.Decimal, dir ledger.Direction) decimal.Decimal {
	return exit.Sub(entry).Mul(size).Mul(dir.Sign())
}
