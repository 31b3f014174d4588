package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/quantfold/perpsim/ledger"
)

// Memory keeps the whole ledger in process memory. Backtests default to
// it so replays never touch disk; tests use it as a drop-in Store.
//
// Transact applies writes directly: the single-writer engine only fails
// a transaction before its first write, so the rollback path a database
// provides is not needed here.
type Memory struct {
	mu        sync.Mutex
	accounts  map[string]ledger.Account
	positions map[string]*ledger.Position // id -> open position
	trades    []*ledger.Trade
	orders    []*ledger.Order
	equity    []EquityPoint
}

func NewMemory() *Memory {
	return &Memory{
		accounts:  make(map[string]ledger.Account),
		positions: make(map[string]*ledger.Position),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Transact(fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{m})
}

type memTx struct {
	m *Memory
}

func (t *memTx) SaveAccount(a *ledger.Account) error {
	t.m.accounts[a.Name] = *a
	return nil
}

func (t *memTx) SavePosition(p *ledger.Position) error {
	cp := *p
	t.m.positions[p.ID] = &cp
	return nil
}

func (t *memTx) MarkPositionClosed(id string) error {
	if _, ok := t.m.positions[id]; !ok {
		return fmt.Errorf("position %q: %w", id, ErrNotFound)
	}
	delete(t.m.positions, id)
	return nil
}

func (t *memTx) InsertTrade(tr *ledger.Trade) error {
	cp := *tr
	t.m.trades = append(t.m.trades, &cp)
	return nil
}

func (t *memTx) InsertOrder(o *ledger.Order) error {
	cp := *o
	t.m.orders = append(t.m.orders, &cp)
	return nil
}

func (t *memTx) RecordEquity(e EquityPoint) error {
	t.m.equity = append(t.m.equity, e)
	return nil
}

func (m *Memory) LoadAccount(name string) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[name]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	return &a, nil
}

func (m *Memory) OpenPositions(account string) ([]*ledger.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.Position
	for _, p := range m.positions {
		if p.Account == account {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) TradesBetween(account string, start, end time.Time) ([]*ledger.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.Trade
	for _, tr := range m.trades {
		if tr.Account != account {
			continue
		}
		if tr.CloseTime.Before(start) || !tr.CloseTime.Before(end) {
			continue
		}
		cp := *tr
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) EquityBetween(account string, start, end time.Time) ([]EquityPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EquityPoint
	for _, e := range m.equity {
		if e.Account != account {
			continue
		}
		if e.Time.Before(start) || !e.Time.Before(end) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Orders returns all recorded orders; test and audit helper.
func (m *Memory) Orders() []*ledger.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ledger.Order, len(m.orders))
	copy(out, m.orders)
	return out
}
