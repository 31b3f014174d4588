package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3"

	"github.com/quantfold/perpsim/ledger"
)

// SQLite is the durable Store implementation.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the ledger database at path.
// WAL mode keeps readers from blocking the engine's write transactions.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

// Transact runs fn in one SQLite transaction, rolling back on error.
func (s *SQLite) Transact(fn func(Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(&sqliteTx{tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) SaveAccount(a *ledger.Account) error {
	_, err := t.tx.Exec(`
		INSERT INTO accounts
		(name, starting_equity, balance, leverage, maker_fee, taker_fee,
		 realized_pnl, fees_paid, trade_count, win_count, peak_equity, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			starting_equity = excluded.starting_equity,
			balance = excluded.balance,
			leverage = excluded.leverage,
			maker_fee = excluded.maker_fee,
			taker_fee = excluded.taker_fee,
			realized_pnl = excluded.realized_pnl,
			fees_paid = excluded.fees_paid,
			trade_count = excluded.trade_count,
			win_count = excluded.win_count,
			peak_equity = excluded.peak_equity,
			max_drawdown = excluded.max_drawdown`,
		a.Name, a.StartingEquity.String(), a.Balance.String(),
		a.DefaultLeverage.String(), a.MakerFeeRate.String(), a.TakerFeeRate.String(),
		a.RealizedPnL.String(), a.FeesPaid.String(), a.TradeCount, a.WinCount,
		a.PeakEquity.String(), a.MaxDrawdown.String(),
	)
	return err
}

func (t *sqliteTx) SavePosition(p *ledger.Position) error {
	_, err := t.tx.Exec(`
		INSERT INTO positions
		(id, account, symbol, direction, size, entry, leverage, margin, entry_fee,
		 stop_loss, take_profit, trailing_pct, open_time, strategy, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'open')
		ON CONFLICT(id) DO UPDATE SET
			stop_loss = excluded.stop_loss,
			take_profit = excluded.take_profit`,
		p.ID, p.Account, p.Symbol, p.Dir.String(),
		p.Size.String(), p.Entry.String(), p.Leverage.String(),
		p.Margin.String(), p.EntryFee.String(),
		p.StopLoss.String(), p.TakeProfit.String(), p.TrailingStopPct.String(),
		p.OpenTime.UTC(), p.Strategy,
	)
	return err
}

func (t *sqliteTx) MarkPositionClosed(id string) error {
	res, err := t.tx.Exec(`UPDATE positions SET status = 'closed' WHERE id = ? AND status = 'open'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("position %q: %w", id, ErrNotFound)
	}
	return nil
}

func (t *sqliteTx) InsertTrade(tr *ledger.Trade) error {
	_, err := t.tx.Exec(`
		INSERT INTO trades
		(id, account, symbol, direction, size, leverage, entry, exit,
		 gross_pnl, fees, net_pnl, open_time, close_time, reason, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.Account, tr.Symbol, tr.Dir.String(),
		tr.Size.String(), tr.Leverage.String(), tr.Entry.String(), tr.Exit.String(),
		tr.GrossPnL.String(), tr.Fees.String(), tr.NetPnL.String(),
		tr.OpenTime.UTC(), tr.CloseTime.UTC(), string(tr.Reason), tr.Strategy,
	)
	return err
}

func (t *sqliteTx) InsertOrder(o *ledger.Order) error {
	_, err := t.tx.Exec(`
		INSERT INTO orders
		(id, account, symbol, kind, direction, requested, fill, size, status, position_id, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Account, o.Symbol, string(o.Kind), o.Dir.String(),
		o.Requested.String(), o.Fill.String(), o.Size.String(),
		string(o.Status), o.PositionID, o.Time.UTC(),
	)
	return err
}

func (t *sqliteTx) RecordEquity(e EquityPoint) error {
	_, err := t.tx.Exec(`
		INSERT INTO equity (account, time, balance, equity) VALUES (?, ?, ?, ?)`,
		e.Account, e.Time.UTC(), e.Balance.String(), e.Equity.String(),
	)
	return err
}

func (s *SQLite) LoadAccount(name string) (*ledger.Account, error) {
	row := s.db.QueryRow(`
		SELECT name, starting_equity, balance, leverage, maker_fee, taker_fee,
		       realized_pnl, fees_paid, trade_count, win_count, peak_equity, max_drawdown
		FROM accounts WHERE name = ?`, name)

	var a ledger.Account
	var startEq, bal, lev, maker, taker, rpnl, fees, peak, dd string
	err := row.Scan(&a.Name, &startEq, &bal, &lev, &maker, &taker,
		&rpnl, &fees, &a.TradeCount, &a.WinCount, &peak, &dd)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&a.StartingEquity, startEq}, {&a.Balance, bal}, {&a.DefaultLeverage, lev},
		{&a.MakerFeeRate, maker}, {&a.TakerFeeRate, taker},
		{&a.RealizedPnL, rpnl}, {&a.FeesPaid, fees},
		{&a.PeakEquity, peak}, {&a.MaxDrawdown, dd},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("account %q: bad decimal %q: %w", name, f.src, err)
		}
	}
	return &a, nil
}

func (s *SQLite) OpenPositions(account string) ([]*ledger.Position, error) {
	rows, err := s.db.Query(`
		SELECT id, account, symbol, direction, size, entry, leverage, margin, entry_fee,
		       stop_loss, take_profit, trailing_pct, open_time, strategy
		FROM positions WHERE account = ? AND status = 'open'
		ORDER BY symbol`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Position
	for rows.Next() {
		var p ledger.Position
		var dir string
		var size, entry, lev, margin, fee, sl, tp, trail string
		if err := rows.Scan(&p.ID, &p.Account, &p.Symbol, &dir,
			&size, &entry, &lev, &margin, &fee, &sl, &tp, &trail,
			&p.OpenTime, &p.Strategy); err != nil {
			return nil, err
		}
		p.Dir = ledger.ParseDirection(dir)

		fields := []struct {
			dst *decimal.Decimal
			src string
		}{
			{&p.Size, size}, {&p.Entry, entry}, {&p.Leverage, lev},
			{&p.Margin, margin}, {&p.EntryFee, fee},
			{&p.StopLoss, sl}, {&p.TakeProfit, tp}, {&p.TrailingStopPct, trail},
		}
		for _, f := range fields {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("position %q: bad decimal %q: %w", p.ID, f.src, err)
			}
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *SQLite) TradesBetween(account string, start, end time.Time) ([]*ledger.Trade, error) {
	rows, err := s.db.Query(`
		SELECT id, account, symbol, direction, size, leverage, entry, exit,
		       gross_pnl, fees, net_pnl, open_time, close_time, reason, strategy
		FROM trades
		WHERE account = ? AND close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, account, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.Trade
	for rows.Next() {
		var tr ledger.Trade
		var dir, reason string
		var size, lev, entry, exit, gross, fees, net string
		if err := rows.Scan(&tr.ID, &tr.Account, &tr.Symbol, &dir,
			&size, &lev, &entry, &exit, &gross, &fees, &net,
			&tr.OpenTime, &tr.CloseTime, &reason, &tr.Strategy); err != nil {
			return nil, err
		}
		tr.Dir = ledger.ParseDirection(dir)
		tr.Reason = ledger.CloseReason(reason)

		fields := []struct {
			dst *decimal.Decimal
			src string
		}{
			{&tr.Size, size}, {&tr.Leverage, lev}, {&tr.Entry, entry}, {&tr.Exit, exit},
			{&tr.GrossPnL, gross}, {&tr.Fees, fees}, {&tr.NetPnL, net},
		}
		for _, f := range fields {
			if *f.dst, err = decimal.NewFromString(f.src); err != nil {
				return nil, fmt.Errorf("trade %q: bad decimal %q: %w", tr.ID, f.src, err)
			}
		}
		out = append(out, &tr)
	}
	return out, rows.Err()
}

func (s *SQLite) EquityBetween(account string, start, end time.Time) ([]EquityPoint, error) {
	rows, err := s.db.Query(`
		SELECT account, time, balance, equity
		FROM equity
		WHERE account = ? AND time >= ? AND time < ?
		ORDER BY time ASC`, account, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var e EquityPoint
		var bal, eq string
		if err := rows.Scan(&e.Account, &e.Time, &bal, &eq); err != nil {
			return nil, err
		}
		if e.Balance, err = decimal.NewFromString(bal); err != nil {
			return nil, err
		}
		if e.Equity, err = decimal.NewFromString(eq); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
