package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of an exposure.
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) Sign() decimal.Decimal {
	return decimal.NewFromInt(int64(d))
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "unknown"
	}
}

// ParseDirection maps the stored string form back to a Direction.
func ParseDirection(s string) Direction {
	if s == "short" {
		return Short
	}
	return Long
}

// CloseReason records why a position was converted to a trade.
type CloseReason string

const (
	ReasonManual       CloseReason = "manual"
	ReasonSignal       CloseReason = "signal"
	ReasonStopLoss     CloseReason = "stop_loss"
	ReasonTakeProfit   CloseReason = "take_profit"
	ReasonTrailingStop CloseReason = "trailing_stop"
	ReasonEndOfData    CloseReason = "end_of_data"
)

// Position is one open exposure to one symbol under one account.
// At most one open Position may exist per (account, symbol); the engine
// rejects a second open, and the store enforces the same with a partial
// unique index.
//
// A zero StopLoss/TakeProfit means "not set"; valid trigger levels are
// always positive prices.
type Position struct {
	ID       string
	Account  string
	Symbol   string
	Dir      Direction
	Size     decimal.Decimal
	Entry    decimal.Decimal
	Leverage decimal.Decimal
	Margin   decimal.Decimal
	EntryFee decimal.Decimal

	StopLoss        decimal.Decimal
	TakeProfit      decimal.Decimal
	TrailingStopPct decimal.Decimal

	OpenTime time.Time
	Strategy string

	// UnrealizedPnL is a cached display value refreshed by
	// Engine.MarkToMarket; it never feeds balance arithmetic.
	UnrealizedPnL decimal.Decimal
}

// Notional returns size × entry price.
func (p *Position) Notional() decimal.Decimal {
	return p.Size.Mul(p.Entry)
}

// Unrealized computes mark-to-market PnL at price without touching the
// cached value.
func (p *Position) Unrealized(price decimal.Decimal) decimal.Decimal {
	return price.Sub(p.Entry).Mul(p.Size).Mul(p.Dir.Sign())
}
