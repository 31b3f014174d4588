package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one fixed-interval OHLCV summary for a symbol.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Mid returns the midpoint of the bar's high and low.
func (b Bar) Mid() decimal.Decimal {
	return b.High.Add(b.Low).Div(decimal.NewFromInt(2))
}

// Range returns high minus low.
func (b Bar) Range() decimal.Decimal {
	return b.High.Sub(b.Low)
}
