package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one completed round trip. It is
// created exactly once when a position closes and is the sole input to
// performance statistics.
type Trade struct {
	ID       string
	Account  string
	Symbol   string
	Dir      Direction
	Size     decimal.Decimal
	Leverage decimal.Decimal

	Entry decimal.Decimal
	Exit  decimal.Decimal

	GrossPnL decimal.Decimal
	Fees     decimal.Decimal // entry + exit
	NetPnL   decimal.Decimal // GrossPnL − Fees

	OpenTime  time.Time
	CloseTime time.Time
	Reason    CloseReason
	Strategy  string
}

// Holding returns the trade's holding duration, computed from the open
// and close timestamps (series time in a backtest, wall time live).
func (t *Trade) Holding() time.Duration {
	return t.CloseTime.Sub(t.OpenTime)
}

// OrderKind classifies the intent behind an order.
type OrderKind string

const (
	OrderOpen       OrderKind = "open"
	OrderClose      OrderKind = "close"
	OrderStopLoss   OrderKind = "stop_loss"
	OrderTakeProfit OrderKind = "take_profit"
)

// OrderStatus is the terminal state of a paper order. Orders fill
// synchronously, so there is no resting state.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
)

// Order is the intent to change a position. Paper orders are ephemeral,
// filled in the same engine call that creates them, but kept explicit so
// the slippage between requested and filled price stays auditable.
type Order struct {
	ID         string
	Account    string
	Symbol     string
	Kind       OrderKind
	Dir        Direction
	Requested  decimal.Decimal // reference price before slippage
	Fill       decimal.Decimal // price after slippage and tick rounding
	Size       decimal.Decimal
	Status     OrderStatus
	PositionID string
	Time       time.Time
}

// KindForClose maps a close reason to the order kind that triggered it.
func KindForClose(reason CloseReason) OrderKind {
	switch reason {
	case ReasonStopLoss, ReasonTrailingStop:
		return OrderStopLoss
	case ReasonTakeProfit:
		return OrderTakeProfit
	default:
		return OrderClose
	}
}
