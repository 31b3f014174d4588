package store

// Schema creates the four ledger relations plus the equity history.
// The partial unique index on open positions is the storage-layer line of
// defense for the single-open-position invariant; the engine enforces the
// same rule before it ever reaches here.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	name TEXT PRIMARY KEY,
	starting_equity TEXT NOT NULL,
	balance TEXT NOT NULL,
	leverage TEXT NOT NULL,
	maker_fee TEXT NOT NULL,
	taker_fee TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	fees_paid TEXT NOT NULL,
	trade_count INTEGER NOT NULL,
	win_count INTEGER NOT NULL,
	peak_equity TEXT NOT NULL,
	max_drawdown TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	account TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	size TEXT NOT NULL,
	entry TEXT NOT NULL,
	leverage TEXT NOT NULL,
	margin TEXT NOT NULL,
	entry_fee TEXT NOT NULL,
	stop_loss TEXT NOT NULL,
	take_profit TEXT NOT NULL,
	trailing_pct TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	strategy TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open'
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_one_open
	ON positions(account, symbol) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	account TEXT NOT NULL,
	symbol TEXT NOT NULL,
	direction TEXT NOT NULL,
	size TEXT NOT NULL,
	leverage TEXT NOT NULL,
	entry TEXT NOT NULL,
	exit TEXT NOT NULL,
	gross_pnl TEXT NOT NULL,
	fees TEXT NOT NULL,
	net_pnl TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	reason TEXT NOT NULL,
	strategy TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_close ON trades(account, close_time);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	account TEXT NOT NULL,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	direction TEXT NOT NULL,
	requested TEXT NOT NULL,
	fill TEXT NOT NULL,
	size TEXT NOT NULL,
	status TEXT NOT NULL,
	position_id TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	account TEXT NOT NULL,
	time DATETIME NOT NULL,
	balance TEXT NOT NULL,
	equity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(account, time);
`
