package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/perpsim/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testAccount() *ledger.Account {
	return ledger.NewAccount("acct-1", dec("10000"), dec("2"), dec("0.0002"), dec("0.0005"))
}

func testPosition(id, symbol string) *ledger.Position {
	return &ledger.Position{
		ID:       id,
		Account:  "acct-1",
		Symbol:   symbol,
		Dir:      ledger.Long,
		Size:     dec("20"),
		Entry:    dec("100.1"),
		Leverage: dec("2"),
		Margin:   dec("1001"),
		EntryFee: dec("1.001"),
		StopLoss: dec("95"),
		OpenTime: base,
		Strategy: "breakout",
	}
}

func TestAccountRoundTrip(t *testing.T) {
	s := newSQLite(t)

	acct := testAccount()
	require.NoError(t, s.Transact(func(tx Tx) error { return tx.SaveAccount(acct) }))

	got, err := s.LoadAccount("acct-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(acct.Balance))
	assert.True(t, got.StartingEquity.Equal(acct.StartingEquity))
	assert.True(t, got.TakerFeeRate.Equal(acct.TakerFeeRate))

	// Every column updates on conflict, so a changed account config
	// (fees, leverage, starting equity) survives a resumed row.
	acct.Balance = dec("10100")
	acct.TradeCount = 3
	acct.StartingEquity = dec("20000")
	acct.DefaultLeverage = dec("3")
	acct.MakerFeeRate = dec("0.0001")
	acct.TakerFeeRate = dec("0.0004")
	require.NoError(t, s.Transact(func(tx Tx) error { return tx.SaveAccount(acct) }))

	got, err = s.LoadAccount("acct-1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("10100")))
	assert.Equal(t, 3, got.TradeCount)
	assert.True(t, got.StartingEquity.Equal(dec("20000")))
	assert.True(t, got.DefaultLeverage.Equal(dec("3")))
	assert.True(t, got.MakerFeeRate.Equal(dec("0.0001")))
	assert.True(t, got.TakerFeeRate.Equal(dec("0.0004")))
}

func TestLoadAccountNotFound(t *testing.T) {
	s := newSQLite(t)
	_, err := s.LoadAccount("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPositionRoundTrip(t *testing.T) {
	s := newSQLite(t)
	pos := testPosition("p1", "BTC-PERP")

	require.NoError(t, s.Transact(func(tx Tx) error { return tx.SavePosition(pos) }))

	open, err := s.OpenPositions("acct-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	got := open[0]
	assert.Equal(t, pos.ID, got.ID)
	assert.Equal(t, ledger.Long, got.Dir)
	assert.True(t, got.Entry.Equal(pos.Entry))
	assert.True(t, got.StopLoss.Equal(pos.StopLoss))
	assert.True(t, got.OpenTime.Equal(pos.OpenTime))
}

func TestSinglePositionPerSymbolIndex(t *testing.T) {
	s := newSQLite(t)

	require.NoError(t, s.Transact(func(tx Tx) error {
		return tx.SavePosition(testPosition("p1", "BTC-PERP"))
	}))

	// A second open row for the same (account, symbol) violates the
	// partial unique index.
	err := s.Transact(func(tx Tx) error {
		return tx.SavePosition(testPosition("p2", "BTC-PERP"))
	})
	require.Error(t, err)

	// The failed transaction left nothing behind.
	open, err := s.OpenPositions("acct-1")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	// Closing the first frees the slot.
	require.NoError(t, s.Transact(func(tx Tx) error {
		return tx.MarkPositionClosed("p1")
	}))
	require.NoError(t, s.Transact(func(tx Tx) error {
		return tx.SavePosition(testPosition("p2", "BTC-PERP"))
	}))
}

func TestSavePositionUpdatesStops(t *testing.T) {
	s := newSQLite(t)
	pos := testPosition("p1", "BTC-PERP")

	require.NoError(t, s.Transact(func(tx Tx) error { return tx.SavePosition(pos) }))

	pos.StopLoss = dec("97")
	pos.TakeProfit = dec("110")
	require.NoError(t, s.Transact(func(tx Tx) error { return tx.SavePosition(pos) }))

	open, err := s.OpenPositions("acct-1")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.True(t, open[0].StopLoss.Equal(dec("97")))
	assert.True(t, open[0].TakeProfit.Equal(dec("110")))
}

func TestMarkPositionClosedUnknown(t *testing.T) {
	s := newSQLite(t)
	err := s.Transact(func(tx Tx) error { return tx.MarkPositionClosed("missing") })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTradesBetweenWindow(t *testing.T) {
	s := newSQLite(t)

	mkTrade := func(id string, closeAt time.Time, net string) *ledger.Trade {
		return &ledger.Trade{
			ID: id, Account: "acct-1", Symbol: "BTC-PERP", Dir: ledger.Long,
			Size: dec("1"), Leverage: dec("2"),
			Entry: dec("100"), Exit: dec("101"),
			GrossPnL: dec("1"), Fees: dec("0.1"), NetPnL: dec(net),
			OpenTime: closeAt.Add(-time.Hour), CloseTime: closeAt,
			Reason: ledger.ReasonSignal, Strategy: "breakout",
		}
	}

	require.NoError(t, s.Transact(func(tx Tx) error {
		for _, tr := range []*ledger.Trade{
			mkTrade("t1", base, "0.9"),
			mkTrade("t2", base.Add(time.Hour), "-0.5"),
			mkTrade("t3", base.Add(2*time.Hour), "1.2"),
		} {
			if err := tx.InsertTrade(tr); err != nil {
				return err
			}
		}
		return nil
	}))

	// Half-open window [base, base+2h) excludes t3.
	trades, err := s.TradesBetween("acct-1", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "t1", trades[0].ID)
	assert.Equal(t, "t2", trades[1].ID)
	assert.True(t, trades[1].NetPnL.Equal(dec("-0.5")))
}

func TestEquityRoundTrip(t *testing.T) {
	s := newSQLite(t)

	require.NoError(t, s.Transact(func(tx Tx) error {
		for i := 0; i < 3; i++ {
			e := EquityPoint{
				Account: "acct-1",
				Time:    base.Add(time.Duration(i) * time.Minute),
				Balance: dec("10000"),
				Equity:  dec("10010"),
			}
			if err := tx.RecordEquity(e); err != nil {
				return err
			}
		}
		return nil
	}))

	pts, err := s.EquityBetween("acct-1", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.True(t, pts[0].Equity.Equal(dec("10010")))
}

func TestTransactRollsBackOnError(t *testing.T) {
	s := newSQLite(t)

	errBoom := assert.AnError
	err := s.Transact(func(tx Tx) error {
		if err := tx.SaveAccount(testAccount()); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.LoadAccount("acct-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
