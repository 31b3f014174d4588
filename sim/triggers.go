package sim

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

// CheckRiskTriggers evaluates the position's stop-loss/take-profit
// against a bar's extremes, direction-aware:
//
//	long:  stop fires when low <= stop;  take fires when high >= take
//	short: stop fires when high >= stop; take fires when low <= take
//
// When both levels are crossed within the same bar (gap case) the
// stop-loss wins, the conservative assumption for the trader. The
// returned price is the trigger level itself; the close then applies
// slippage and fees like any other exit.
func (e *Engine) CheckRiskTriggers(pos *ledger.Position, bar market.Bar) (ledger.CloseReason, decimal.Decimal, bool) {
	e.mu.Lock()
	cur, ok := e.positions[pos.Symbol]
	e.mu.Unlock()
	if !ok || cur.ID != pos.ID {
		return "", decimal.Zero, false
	}

	hasStop := !cur.StopLoss.IsZero()
	hasTake := !cur.TakeProfit.IsZero()

	var stopHit, takeHit bool
	if cur.Dir == ledger.Long {
		stopHit = hasStop && !bar.Low.GreaterThan(cur.StopLoss)
		takeHit = hasTake && !bar.High.LessThan(cur.TakeProfit)
	} else {
		stopHit = hasStop && !bar.High.LessThan(cur.StopLoss)
		takeHit = hasTake && !bar.Low.GreaterThan(cur.TakeProfit)
	}

	switch {
	case stopHit:
		reason := ledger.ReasonStopLoss
		if cur.TrailingStopPct.IsPositive() {
			reason = ledger.ReasonTrailingStop
		}
		return reason, cur.StopLoss, true
	case takeHit:
		return ledger.ReasonTakeProfit, cur.TakeProfit, true
	default:
		return "", decimal.Zero, false
	}
}
