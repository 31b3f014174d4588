// Package store persists the ledger: accounts, positions, trades and
// orders, plus the equity history used for reporting. The engine is the
// only writer, and every engine operation runs inside one transaction so
// a crash can never leave a half-applied ledger.
package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/perpsim/ledger"
)

// ErrNotFound is returned when a requested account or record does not exist.
var ErrNotFound = errors.New("store: not found")

// EquityPoint is one sample of the account equity curve.
type EquityPoint struct {
	Account string
	Time    time.Time
	Balance decimal.Decimal
	Equity  decimal.Decimal
}

// Tx is the write surface available inside a transaction.
type Tx interface {
	SaveAccount(a *ledger.Account) error

	// SavePosition inserts or updates a position row with status open.
	SavePosition(p *ledger.Position) error
	// MarkPositionClosed flips the position row to closed, freeing the
	// (account, symbol) slot guarded by the unique open index.
	MarkPositionClosed(id string) error

	InsertTrade(t *ledger.Trade) error
	InsertOrder(o *ledger.Order) error
	RecordEquity(e EquityPoint) error
}

// Store is the persistence boundary consumed by the engine and the CLI.
type Store interface {
	// Transact runs fn inside a single transaction; if fn returns an
	// error nothing it wrote is visible.
	Transact(fn func(Tx) error) error

	LoadAccount(name string) (*ledger.Account, error)
	OpenPositions(account string) ([]*ledger.Position, error)
	TradesBetween(account string, start, end time.Time) ([]*ledger.Trade, error)
	EquityBetween(account string, start, end time.Time) ([]EquityPoint, error)

	Close() error
}
