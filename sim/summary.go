package sim

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
)

// PositionSummary is the read-only view of one open position.
type PositionSummary struct {
	Symbol        string
	Direction     ledger.Direction
	Size          decimal.Decimal
	Entry         decimal.Decimal
	UnrealizedPnL decimal.Decimal
	StopLoss      decimal.Decimal
	TakeProfit    decimal.Decimal
	OpenTime      time.Time
	Strategy      string
}

// Summary is the account snapshot emitted on demand and on the live
// loop's reporting cadence.
type Summary struct {
	Account       string
	Balance       decimal.Decimal
	Equity        decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	FeesPaid      decimal.Decimal
	TradeCount    int
	WinCount      int
	WinRate       float64
	MaxDrawdown   decimal.Decimal
	OpenPositions []PositionSummary
}

// Summary builds the current account snapshot.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Summary{
		Account:     e.acct.Name,
		Balance:     e.acct.Balance,
		Equity:      e.equityLocked(),
		RealizedPnL: e.acct.RealizedPnL,
		FeesPaid:    e.acct.FeesPaid,
		TradeCount:  e.acct.TradeCount,
		WinCount:    e.acct.WinCount,
		WinRate:     e.acct.WinRate(),
		MaxDrawdown: e.acct.MaxDrawdown,
	}

	for _, p := range e.positions {
		s.UnrealizedPnL = s.UnrealizedPnL.Add(p.UnrealizedPnL)
		s.OpenPositions = append(s.OpenPositions, PositionSummary{
			Symbol:        p.Symbol,
			Direction:     p.Dir,
			Size:          p.Size,
			Entry:         p.Entry,
			UnrealizedPnL: p.UnrealizedPnL,
			StopLoss:      p.StopLoss,
			TakeProfit:    p.TakeProfit,
			OpenTime:      p.OpenTime,
			Strategy:      p.Strategy,
		})
	}
	sort.Slice(s.OpenPositions, func(i, j int) bool {
		return s.OpenPositions[i].Symbol < s.OpenPositions[j].Symbol
	})
	return s
}
