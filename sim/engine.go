// Package sim is the simulation engine: the only writer of the ledger.
// It derives fill prices with slippage and fees, keeps the PnL and margin
// bookkeeping consistent, and triggers stop-loss/take-profit closes. The
// live bot loop and the backtest replayer both drive this engine, which
// is what makes a strategy behave identically under either driver.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/perpsim/internal/id"
	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
	"github.com/quantfold/perpsim/store"
)

// Config carries the engine's fill model and bounds.
type Config struct {
	// SlippagePct is the assumed unfavorable gap between reference and
	// fill price, as a fraction (0.001 = 0.1%).
	SlippagePct decimal.Decimal

	// MaxLeverage bounds request leverage; requests outside [1, max]
	// are rejected.
	MaxLeverage decimal.Decimal

	// Catalog supplies per-symbol tick sizes for fill rounding.
	Catalog market.Catalog
}

// Engine owns one account's ledger. All mutation goes through it, under
// one mutex, and each operation's writes land in a single store
// transaction.
type Engine struct {
	mu        sync.Mutex
	acct      *ledger.Account
	positions map[string]*ledger.Position // symbol -> open position
	trades    []*ledger.Trade

	cfg Config
	st  store.Store
	log *zap.Logger

	onTrade TradeListener
}

// TradeListener is notified after a close has committed. It runs outside
// the engine lock, so it may call back into the engine.
type TradeListener func(*ledger.Trade)

// NewEngine builds an engine over acct. A nil store falls back to the
// in-memory store; a nil logger to a no-op logger.
func NewEngine(acct *ledger.Account, cfg Config, st store.Store, log *zap.Logger) *Engine {
	if st == nil {
		st = store.NewMemory()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxLeverage.IsZero() {
		cfg.MaxLeverage = decimal.NewFromInt(20)
	}
	return &Engine{
		acct:      acct,
		positions: make(map[string]*ledger.Position),
		cfg:       cfg,
		st:        st,
		log:       log,
	}
}

// SetTradeListener registers an optional callback invoked for every
// closed trade.
func (e *Engine) SetTradeListener(fn TradeListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrade = fn
}

// Restore adopts previously persisted open positions, typically after a
// restart. The single-open invariant still holds.
func (e *Engine) Restore(positions []*ledger.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range positions {
		if p.Account != e.acct.Name {
			return fmt.Errorf("restore: position %s belongs to account %q", p.ID, p.Account)
		}
		if _, ok := e.positions[p.Symbol]; ok {
			return fmt.Errorf("restore %s: %w", p.Symbol, ErrPositionExists)
		}
		e.positions[p.Symbol] = p
	}
	return nil
}

// OpenRequest describes a market open.
type OpenRequest struct {
	Symbol string
	Dir    ledger.Direction

	// Size is the absolute contract size. When zero, SizePct is used:
	// a fraction of current balance, levered
	// (size = balance · pct · leverage / price).
	Size    decimal.Decimal
	SizePct decimal.Decimal

	// Leverage; zero means the account default.
	Leverage decimal.Decimal

	StopLoss        decimal.Decimal // zero = none
	TakeProfit      decimal.Decimal // zero = none
	TrailingStopPct decimal.Decimal // zero = none

	Strategy string

	// Price is the reference price the fill derives from; Time stamps
	// the position (series time in replay, wall time live).
	Price decimal.Decimal
	Time  time.Time
}

// Open validates the request, debits margin and the taker fee, and
// persists the new position with its order in one transaction.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*ledger.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !req.Price.IsPositive() {
		return nil, e.reject("open", req.Symbol, ErrNoPrice)
	}
	if _, ok := e.positions[req.Symbol]; ok {
		return nil, e.reject("open", req.Symbol, ErrPositionExists)
	}

	lev := req.Leverage
	if lev.IsZero() {
		lev = e.acct.DefaultLeverage
	}
	if lev.LessThan(one) || lev.GreaterThan(e.cfg.MaxLeverage) {
		return nil, e.reject("open", req.Symbol,
			fmt.Errorf("%w: %s not in [1, %s]", ErrLeverageBound, lev, e.cfg.MaxLeverage))
	}

	tick := e.cfg.Catalog.Tick(req.Symbol)
	fill := fillPrice(req.Price, req.Dir, false, e.cfg.SlippagePct, tick)

	size := req.Size
	if size.IsZero() && req.SizePct.IsPositive() {
		size = e.acct.Balance.Mul(req.SizePct).Mul(lev).Div(fill)
	}
	if !size.IsPositive() {
		return nil, e.reject("open", req.Symbol, ErrBadSize)
	}

	notional := size.Mul(fill)
	margin := notional.Div(lev)
	fee := takerFee(notional, e.acct.TakerFeeRate)

	if margin.Add(fee).GreaterThan(e.acct.Balance) {
		return nil, e.reject("open", req.Symbol,
			fmt.Errorf("%w: need %s, have %s", ErrInsufficientMargin, margin.Add(fee), e.acct.Balance))
	}

	pos := &ledger.Position{
		ID:              id.New(),
		Account:         e.acct.Name,
		Symbol:          req.Symbol,
		Dir:             req.Dir,
		Size:            size,
		Entry:           fill,
		Leverage:        lev,
		Margin:          margin,
		EntryFee:        fee,
		StopLoss:        req.StopLoss,
		TakeProfit:      req.TakeProfit,
		TrailingStopPct: req.TrailingStopPct,
		OpenTime:        req.Time,
		Strategy:        req.Strategy,
	}
	order := &ledger.Order{
		ID:         id.New(),
		Account:    e.acct.Name,
		Symbol:     req.Symbol,
		Kind:       ledger.OrderOpen,
		Dir:        req.Dir,
		Requested:  req.Price,
		Fill:       fill,
		Size:       size,
		Status:     ledger.OrderFilled,
		PositionID: pos.ID,
		Time:       req.Time,
	}

	// Stage the balance mutation; only commit in-memory state once the
	// store transaction has landed.
	newBalance := e.acct.Balance.Sub(margin).Sub(fee)
	newFees := e.acct.FeesPaid.Add(fee)

	staged := *e.acct
	staged.Balance = newBalance
	staged.FeesPaid = newFees

	err := e.st.Transact(func(tx store.Tx) error {
		if err := tx.SaveAccount(&staged); err != nil {
			return err
		}
		if err := tx.SavePosition(pos); err != nil {
			return err
		}
		return tx.InsertOrder(order)
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: persist: %w", req.Symbol, err)
	}

	e.acct.Balance = newBalance
	e.acct.FeesPaid = newFees
	e.positions[req.Symbol] = pos

	e.log.Info("position opened",
		zap.String("symbol", req.Symbol),
		zap.String("direction", req.Dir.String()),
		zap.String("size", size.String()),
		zap.String("fill", fill.String()),
		zap.String("margin", margin.String()),
		zap.String("fee", fee.String()),
		zap.String("strategy", req.Strategy),
	)
	return pos, nil
}

// Close converts an open position into a trade. Slippage is applied
// unfavorably again, entry and exit fees are charged against the gross
// PnL, and the balance is credited margin plus the exit-side proceeds.
// A second close of the same position is rejected with ErrPositionClosed
// and changes nothing.
func (e *Engine) Close(ctx context.Context, pos *ledger.Position, refPrice decimal.Decimal, at time.Time, reason ledger.CloseReason) (*ledger.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	trade, err := e.closeLocked(pos, refPrice, at, reason)
	listener := e.onTrade
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if listener != nil {
		listener(trade)
	}
	return trade, nil
}

func (e *Engine) closeLocked(pos *ledger.Position, refPrice decimal.Decimal, at time.Time, reason ledger.CloseReason) (*ledger.Trade, error) {
	cur, ok := e.positions[pos.Symbol]
	if !ok || cur.ID != pos.ID {
		return nil, e.reject("close", pos.Symbol, ErrPositionClosed)
	}
	if !refPrice.IsPositive() {
		return nil, e.reject("close", pos.Symbol, ErrNoPrice)
	}

	tick := e.cfg.Catalog.Tick(cur.Symbol)
	fill := fillPrice(refPrice, cur.Dir, true, e.cfg.SlippagePct, tick)

	gross := grossPnL(cur.Entry, fill, cur.Size, cur.Dir)
	exitFee := takerFee(cur.Size.Mul(fill), e.acct.TakerFeeRate)
	fees := cur.EntryFee.Add(exitFee)
	net := gross.Sub(fees)

	trade := &ledger.Trade{
		ID:        id.New(),
		Account:   e.acct.Name,
		Symbol:    cur.Symbol,
		Dir:       cur.Dir,
		Size:      cur.Size,
		Leverage:  cur.Leverage,
		Entry:     cur.Entry,
		Exit:      fill,
		GrossPnL:  gross,
		Fees:      fees,
		NetPnL:    net,
		OpenTime:  cur.OpenTime,
		CloseTime: at,
		Reason:    reason,
		Strategy:  cur.Strategy,
	}
	order := &ledger.Order{
		ID:         id.New(),
		Account:    e.acct.Name,
		Symbol:     cur.Symbol,
		Kind:       ledger.KindForClose(reason),
		Dir:        cur.Dir,
		Requested:  refPrice,
		Fill:       fill,
		Size:       cur.Size,
		Status:     ledger.OrderFilled,
		PositionID: cur.ID,
		Time:       at,
	}

	// The entry fee was debited at open, so the close credit is
	// margin + gross − exitFee; the balance delta across the round trip
	// is exactly the trade's net PnL.
	staged := *e.acct
	staged.Balance = e.acct.Balance.Add(cur.Margin).Add(gross).Sub(exitFee)
	staged.FeesPaid = e.acct.FeesPaid.Add(exitFee)
	staged.RealizedPnL = e.acct.RealizedPnL.Add(net)
	staged.TradeCount++
	if net.IsPositive() {
		staged.WinCount++
	}

	equity := staged.Balance
	for _, p := range e.positions {
		if p.ID != cur.ID {
			equity = equity.Add(p.UnrealizedPnL)
		}
	}
	staged.ObserveEquity(equity)

	err := e.st.Transact(func(tx store.Tx) error {
		if err := tx.SaveAccount(&staged); err != nil {
			return err
		}
		if err := tx.MarkPositionClosed(cur.ID); err != nil {
			return err
		}
		if err := tx.InsertTrade(trade); err != nil {
			return err
		}
		if err := tx.InsertOrder(order); err != nil {
			return err
		}
		return tx.RecordEquity(store.EquityPoint{
			Account: e.acct.Name,
			Time:    at,
			Balance: staged.Balance,
			Equity:  equity,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("close %s: persist: %w", cur.Symbol, err)
	}

	*e.acct = staged
	delete(e.positions, cur.Symbol)
	e.trades = append(e.trades, trade)

	e.log.Info("position closed",
		zap.String("symbol", trade.Symbol),
		zap.String("direction", trade.Dir.String()),
		zap.String("exit", fill.String()),
		zap.String("gross_pnl", gross.String()),
		zap.String("net_pnl", net.String()),
		zap.String("reason", string(reason)),
		zap.Duration("holding", trade.Holding()),
	)
	return trade, nil
}

// MarkToMarket refreshes the position's cached unrealized PnL at price
// and ratchets the trailing stop when one is configured. These are the
// only mutations a position sees between open and close.
func (e *Engine) MarkToMarket(pos *ledger.Position, price decimal.Decimal) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.positions[pos.Symbol]
	if !ok || cur.ID != pos.ID {
		return decimal.Zero
	}

	cur.UnrealizedPnL = cur.Unrealized(price)

	if cur.TrailingStopPct.IsPositive() {
		e.ratchetTrailingStopLocked(cur, price)
	}
	return cur.UnrealizedPnL
}

func (e *Engine) ratchetTrailingStopLocked(p *ledger.Position, price decimal.Decimal) {
	var candidate decimal.Decimal
	if p.Dir == ledger.Long {
		candidate = price.Mul(one.Sub(p.TrailingStopPct))
		if !candidate.GreaterThan(p.StopLoss) {
			return
		}
	} else {
		candidate = price.Mul(one.Add(p.TrailingStopPct))
		if !p.StopLoss.IsZero() && !candidate.LessThan(p.StopLoss) {
			return
		}
	}

	p.StopLoss = candidate
	if err := e.st.Transact(func(tx store.Tx) error {
		return tx.SavePosition(p)
	}); err != nil {
		e.log.Warn("trailing stop persist failed",
			zap.String("symbol", p.Symbol), zap.Error(err))
	}
}

// AmendStops tightens (never loosens) a position's protective stops.
func (e *Engine) AmendStops(pos *ledger.Position, stopLoss, takeProfit decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.positions[pos.Symbol]
	if !ok || cur.ID != pos.ID {
		return ErrPositionClosed
	}

	if !stopLoss.IsZero() && !cur.StopLoss.IsZero() {
		loosens := (cur.Dir == ledger.Long && stopLoss.LessThan(cur.StopLoss)) ||
			(cur.Dir == ledger.Short && stopLoss.GreaterThan(cur.StopLoss))
		if loosens {
			return e.reject("amend", cur.Symbol, ErrBadStop)
		}
	}
	if !stopLoss.IsZero() {
		cur.StopLoss = stopLoss
	}
	if !takeProfit.IsZero() {
		cur.TakeProfit = takeProfit
	}

	return e.st.Transact(func(tx store.Tx) error {
		return tx.SavePosition(cur)
	})
}

// Position returns the open position for symbol, or nil.
func (e *Engine) Position(symbol string) *ledger.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions[symbol]
}

// OpenPositions returns the open positions ordered by symbol.
func (e *Engine) OpenPositions() []*ledger.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*ledger.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Trades returns the trades closed by this engine instance, in close order.
func (e *Engine) Trades() []*ledger.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*ledger.Trade, len(e.trades))
	copy(out, e.trades)
	return out
}

// Account returns a copy of the account state.
func (e *Engine) Account() ledger.Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.acct
}

// Equity returns balance plus the cached unrealized PnL of every open
// position.
func (e *Engine) Equity() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.equityLocked()
}

func (e *Engine) equityLocked() decimal.Decimal {
	eq := e.acct.Balance
	for _, p := range e.positions {
		eq = eq.Add(p.UnrealizedPnL)
	}
	return eq
}

func (e *Engine) reject(op, symbol string, err error) error {
	e.log.Warn("rejected",
		zap.String("op", op),
		zap.String("symbol", symbol),
		zap.Error(err),
	)
	return err
}
