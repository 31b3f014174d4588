package market

import "github.com/shopspring/decimal"

// Instrument holds per-symbol contract metadata. Fill prices are rounded
// to TickSize before any PnL is computed.
type Instrument struct {
	Symbol   string
	TickSize decimal.Decimal
}

// Catalog maps symbol to instrument metadata.
type Catalog map[string]Instrument

// Tick returns the tick size for symbol, falling back to 0.01 for
// symbols with no registered metadata.
func (c Catalog) Tick(symbol string) decimal.Decimal {
	if ins, ok := c[symbol]; ok && ins.TickSize.IsPositive() {
		return ins.TickSize
	}
	return defaultTick
}

var defaultTick = decimal.RequireFromString("0.01")

// RoundToTick snaps a price to the nearest multiple of tick.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}
