// Package strategies holds the decision boundary between signal logic
// and execution. A strategy reads a bar series and its open position (if
// any) and returns a Decision; it never mutates the ledger. The drivers
// interpret decisions through the simulation engine, which is why one
// strategy implementation serves both the live loop and the backtest
// replayer unmodified.
package strategies

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

// Strategy is the single capability the engine's drivers depend on.
type Strategy interface {
	// Name returns a stable identifier recorded on positions and trades.
	Name() string

	// MinBars is the series length required before Evaluate produces
	// meaningful signals; drivers hold until the series is warm.
	MinBars() int

	// Evaluate inspects the series and the open position (nil when
	// flat) and returns a Decision. "No signal" is Hold, not an error;
	// errors are reserved for genuine faults.
	Evaluate(ctx context.Context, s *market.Series, pos *ledger.Position) (Decision, error)
}

// Action tags the Decision variant.
type Action int8

const (
	ActionHold Action = iota
	ActionOpen
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	default:
		return "hold"
	}
}

// Decision is the tagged outcome of one evaluation.
type Decision struct {
	Action     Action
	Dir        ledger.Direction
	Confidence float64 // 0..1, meaningful for opens

	StopLoss   decimal.Decimal // zero = none
	TakeProfit decimal.Decimal // zero = none

	Reason ledger.CloseReason // meaningful for closes
}

// Hold is the explicit no-signal decision.
func Hold() Decision { return Decision{Action: ActionHold} }

// OpenPosition builds an open decision.
func OpenPosition(dir ledger.Direction, confidence float64, stopLoss, takeProfit decimal.Decimal) Decision {
	return Decision{
		Action:     ActionOpen,
		Dir:        dir,
		Confidence: confidence,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
}

// ClosePosition builds a close decision.
func ClosePosition(reason ledger.CloseReason) Decision {
	return Decision{Action: ActionClose, Reason: reason}
}
