package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
)

// Stats summarizes a closed-trade list. All currency values are in the
// account's quote currency; losses are reported as positive magnitudes.
type Stats struct {
	Trades int
	Wins   int
	Losses int

	WinRate float64 // wins / trades; 0 with no trades

	NetPnL decimal.Decimal
	Fees   decimal.Decimal

	GrossWins   decimal.Decimal
	GrossLosses decimal.Decimal

	// ProfitFactor is GrossWins / GrossLosses. With no losing trades it
	// is +Inf when there are wins and 0 otherwise.
	ProfitFactor float64

	AvgWin      decimal.Decimal
	AvgLoss     decimal.Decimal
	LargestWin  decimal.Decimal
	LargestLoss decimal.Decimal

	// MaxDrawdown is the deepest peak-to-trough decline of the equity
	// path built by applying each trade's net PnL to the starting
	// equity in close order.
	MaxDrawdown decimal.Decimal
}

// Compute derives Stats from trades, assumed ordered by close time.
func Compute(startingEquity decimal.Decimal, trades []*ledger.Trade) Stats {
	s := Stats{
		NetPnL:      decimal.Zero,
		Fees:        decimal.Zero,
		GrossWins:   decimal.Zero,
		GrossLosses: decimal.Zero,
		AvgWin:      decimal.Zero,
		AvgLoss:     decimal.Zero,
		LargestWin:  decimal.Zero,
		LargestLoss: decimal.Zero,
		MaxDrawdown: decimal.Zero,
	}

	equity := startingEquity
	peak := startingEquity

	for _, t := range trades {
		s.Trades++
		s.NetPnL = s.NetPnL.Add(t.NetPnL)
		s.Fees = s.Fees.Add(t.Fees)

		switch {
		case t.NetPnL.IsPositive():
			s.Wins++
			s.GrossWins = s.GrossWins.Add(t.NetPnL)
			if t.NetPnL.GreaterThan(s.LargestWin) {
				s.LargestWin = t.NetPnL
			}
		case t.NetPnL.IsNegative():
			s.Losses++
			loss := t.NetPnL.Neg()
			s.GrossLosses = s.GrossLosses.Add(loss)
			if loss.GreaterThan(s.LargestLoss) {
				s.LargestLoss = loss
			}
		}

		equity = equity.Add(t.NetPnL)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(s.MaxDrawdown) {
			s.MaxDrawdown = dd
		}
	}

	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossWins.Div(decimal.NewFromInt(int64(s.Wins)))
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLosses.Div(decimal.NewFromInt(int64(s.Losses)))
	}

	switch {
	case s.GrossLosses.IsPositive():
		pf, _ := s.GrossWins.Div(s.GrossLosses).Float64()
		s.ProfitFactor = pf
	case s.GrossWins.IsPositive():
		s.ProfitFactor = math.Inf(1)
	}

	return s
}
