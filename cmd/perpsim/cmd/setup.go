package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/perpsim/config"
	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
	"github.com/quantfold/perpsim/sim"
	"github.com/quantfold/perpsim/store"
)

func buildStore(cfg *config.Config) (store.Store, error) {
	switch strings.ToLower(cfg.Store.Type) {
	case "memory":
		return store.NewMemory(), nil
	default:
		return store.NewSQLite(cfg.Store.Path)
	}
}

func buildCatalog(cfg *config.Config) (market.Catalog, error) {
	cat := make(market.Catalog, len(cfg.Instruments))
	for _, ins := range cfg.Instruments {
		tick, err := decimal.NewFromString(ins.TickSize)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: bad tick size %q: %w", ins.Symbol, ins.TickSize, err)
		}
		cat[ins.Symbol] = market.Instrument{Symbol: ins.Symbol, TickSize: tick}
	}
	return cat, nil
}

// buildEngine resumes the configured account from the store when it
// exists, re-adopting its open positions, and starts fresh otherwise.
func buildEngine(cfg *config.Config, st store.Store, log *zap.Logger) (*sim.Engine, error) {
	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	acct, err := st.LoadAccount(cfg.Account.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		acct = ledger.NewAccount(
			cfg.Account.Name,
			decimal.NewFromFloat(cfg.Account.StartingEquity),
			decimal.NewFromFloat(cfg.Account.Leverage),
			decimal.NewFromFloat(cfg.Account.MakerFeeRate),
			decimal.NewFromFloat(cfg.Account.TakerFeeRate),
		)
	case err != nil:
		return nil, fmt.Errorf("load account: %w", err)
	default:
		log.Info("resuming account",
			zap.String("account", acct.Name),
			zap.String("balance", acct.Balance.String()),
		)
	}

	engine := sim.NewEngine(acct, sim.Config{
		SlippagePct: decimal.NewFromFloat(cfg.Engine.SlippagePct),
		MaxLeverage: decimal.NewFromFloat(cfg.Engine.MaxLeverage),
		Catalog:     cat,
	}, st, log)

	open, err := st.OpenPositions(acct.Name)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	if len(open) > 0 {
		if err := engine.Restore(open); err != nil {
			return nil, err
		}
		log.Info("restored open positions", zap.Int("count", len(open)))
	}
	return engine, nil
}

// parseKeyValues splits repeated "SYMBOL=value" flags.
func parseKeyValues(flag string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		sym, val, ok := strings.Cut(p, "=")
		if !ok || sym == "" || val == "" {
			return nil, fmt.Errorf("--%s: expected SYMBOL=value, got %q", flag, p)
		}
		out[sym] = val
	}
	return out, nil
}
