package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
	"github.com/quantfold/perpsim/sim"
	"github.com/quantfold/perpsim/strategies"
)

// Options controls how the replayer turns strategy decisions into
// engine requests.
type Options struct {
	// Granularity is the bar interval of the dataset.
	Granularity time.Duration

	// SizePct is the balance fraction committed per entry.
	SizePct decimal.Decimal

	// Leverage per entry; zero means the account default.
	Leverage decimal.Decimal

	// TrailingStopPct attaches a trailing stop to every entry when
	// positive.
	TrailingStopPct decimal.Decimal

	// MinConfidence discards open decisions below this confidence.
	MinConfidence float64

	// MaxSeriesLen bounds the in-memory series; zero keeps every bar.
	MaxSeriesLen int

	// KeepOpenAtEnd leaves any surviving position open instead of
	// force-closing it at the final bar's close.
	KeepOpenAtEnd bool
}

// Result reports one completed replay.
type Result struct {
	Symbol string
	Bars   int
	Start  time.Time
	End    time.Time

	FinalBalance decimal.Decimal
	FinalEquity  decimal.Decimal
	Stats        Stats
}

// Replayer drives an engine forward over a feed: each bar is appended
// to the series, marks the open position, is checked against its risk
// triggers, and then handed to the strategy.
type Replayer struct {
	Engine   *sim.Engine
	Feed     Feed
	Strategy strategies.Strategy
	Options  Options
	Log      *zap.Logger
}

// Run executes the replay to end of data or ctx cancellation.
func (r *Replayer) Run(ctx context.Context) (Result, error) {
	if r.Engine == nil {
		return Result{}, fmt.Errorf("backtest: engine is required")
	}
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: feed is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: strategy is required")
	}
	if r.Options.Granularity <= 0 {
		return Result{}, fmt.Errorf("backtest: granularity is required")
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	defer r.Feed.Close()

	var (
		series *market.Series
		res    Result
	)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		bar, ok, err := r.Feed.Next()
		if err != nil {
			return res, fmt.Errorf("backtest: feed: %w", err)
		}
		if !ok {
			break
		}

		if series == nil {
			series = market.NewSeries(bar.Symbol, r.Options.Granularity)
			res.Symbol = bar.Symbol
			res.Start = bar.Time
		} else if bar.Symbol != series.Symbol {
			return res, fmt.Errorf("backtest: mixed symbols in feed: %q and %q", series.Symbol, bar.Symbol)
		}

		if err := series.Append(bar); err != nil {
			return res, fmt.Errorf("backtest: %w", err)
		}
		if r.Options.MaxSeriesLen > 0 {
			series.Trim(r.Options.MaxSeriesLen)
		}
		res.Bars++
		res.End = bar.Time

		pos := r.Engine.Position(bar.Symbol)
		if pos != nil {
			r.Engine.MarkToMarket(pos, bar.Close)
			if reason, level, hit := r.Engine.CheckRiskTriggers(pos, bar); hit {
				if _, err := r.Engine.Close(ctx, pos, level, bar.Time, reason); err != nil {
					return res, fmt.Errorf("backtest: trigger close: %w", err)
				}
				pos = nil
			}
		}

		if series.Len() < r.Strategy.MinBars() {
			continue
		}

		dec, err := r.Strategy.Evaluate(ctx, series, pos)
		if err != nil {
			return res, fmt.Errorf("backtest: strategy %s: %w", r.Strategy.Name(), err)
		}

		switch dec.Action {
		case strategies.ActionOpen:
			if pos != nil || dec.Confidence < r.Options.MinConfidence {
				continue
			}
			req := sim.OpenRequest{
				Symbol:          bar.Symbol,
				Dir:             dec.Dir,
				SizePct:         r.Options.SizePct,
				Leverage:        r.Options.Leverage,
				StopLoss:        dec.StopLoss,
				TakeProfit:      dec.TakeProfit,
				TrailingStopPct: r.Options.TrailingStopPct,
				Strategy:        r.Strategy.Name(),
				Price:           bar.Close,
				Time:            bar.Time,
			}
			if _, err := r.Engine.Open(ctx, req); err != nil {
				// Margin exhaustion is an outcome the stats should
				// show, not a fault that aborts the replay.
				if errors.Is(err, sim.ErrInsufficientMargin) {
					log.Debug("open skipped", zap.String("symbol", bar.Symbol), zap.Error(err))
					continue
				}
				return res, fmt.Errorf("backtest: open: %w", err)
			}

		case strategies.ActionClose:
			if pos == nil {
				continue
			}
			if _, err := r.Engine.Close(ctx, pos, bar.Close, bar.Time, dec.Reason); err != nil {
				return res, fmt.Errorf("backtest: close: %w", err)
			}
		}
	}

	if !r.Options.KeepOpenAtEnd && series != nil {
		if pos := r.Engine.Position(series.Symbol); pos != nil {
			last := series.Last()
			if _, err := r.Engine.Close(ctx, pos, last.Close, last.Time, ledger.ReasonEndOfData); err != nil {
				return res, fmt.Errorf("backtest: end-of-data close: %w", err)
			}
		}
	}

	acct := r.Engine.Account()
	res.FinalBalance = acct.Balance
	res.FinalEquity = r.Engine.Equity()
	res.Stats = Compute(acct.StartingEquity, r.Engine.Trades())
	return res, nil
}
