package ledger

import "github.com/shopspring/decimal"

// Account is one virtual trading identity. It is created on first use,
// mutated only by the simulation engine, and reset rather than deleted.
//
// Invariant: Balance = StartingEquity + Σ gross PnL − Σ fees,
// which is the same as StartingEquity + Σ net PnL.
type Account struct {
	Name            string
	StartingEquity  decimal.Decimal
	Balance         decimal.Decimal
	DefaultLeverage decimal.Decimal
	MakerFeeRate    decimal.Decimal
	TakerFeeRate    decimal.Decimal

	RealizedPnL decimal.Decimal // cumulative net over all closed trades
	FeesPaid    decimal.Decimal
	TradeCount  int
	WinCount    int

	PeakEquity  decimal.Decimal // equity high-water mark
	MaxDrawdown decimal.Decimal // worst fractional decline from PeakEquity
}

// NewAccount returns a fresh account with balance equal to starting equity.
func NewAccount(name string, startingEquity, leverage, makerFee, takerFee decimal.Decimal) *Account {
	return &Account{
		Name:            name,
		StartingEquity:  startingEquity,
		Balance:         startingEquity,
		DefaultLeverage: leverage,
		MakerFeeRate:    makerFee,
		TakerFeeRate:    takerFee,
		PeakEquity:      startingEquity,
	}
}

// Reset restores the account to its starting state. Trade history in the
// store is untouched; only the running ledger fields are cleared.
func (a *Account) Reset() {
	a.Balance = a.StartingEquity
	a.RealizedPnL = decimal.Zero
	a.FeesPaid = decimal.Zero
	a.TradeCount = 0
	a.WinCount = 0
	a.PeakEquity = a.StartingEquity
	a.MaxDrawdown = decimal.Zero
}

// WinRate returns wins / trades, zero when no trades have closed.
func (a *Account) WinRate() float64 {
	if a.TradeCount == 0 {
		return 0
	}
	return float64(a.WinCount) / float64(a.TradeCount)
}

// ObserveEquity updates the high-water mark and max drawdown for the
// given equity reading.
func (a *Account) ObserveEquity(equity decimal.Decimal) {
	if equity.GreaterThan(a.PeakEquity) {
		a.PeakEquity = equity
		return
	}
	if a.PeakEquity.IsPositive() {
		dd := a.PeakEquity.Sub(equity).Div(a.PeakEquity)
		if dd.GreaterThan(a.MaxDrawdown) {
			a.MaxDrawdown = dd
		}
	}
}
