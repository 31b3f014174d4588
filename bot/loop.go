package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
	"github.com/quantfold/perpsim/sim"
	"github.com/quantfold/perpsim/strategies"
)

func (b *Bot) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if b.cfg.MaxRuntime > 0 {
		timer := time.NewTimer(b.cfg.MaxRuntime)
		defer timer.Stop()
		deadline = timer.C
	}

	b.log.Info("bot started",
		zap.Strings("symbols", b.cfg.Symbols),
		zap.Duration("interval", b.cfg.Interval),
		zap.String("strategy", b.strat.Name()),
	)

	for {
		select {
		case <-ctx.Done():
			// Cancellation is handled like the time-limit breaker:
			// nothing more is written to the ledger.
			b.shutdown(StateStoppedSignal)
			return

		case <-deadline:
			b.shutdown(StateStoppedTimeLimit)
			return

		case <-ticker.C:
			lossTripped, err := b.tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					b.shutdown(StateStoppedSignal)
					return
				}
				b.finish(StateErrored, err)
				return
			}
			if lossTripped {
				b.shutdown(StateStoppedLossLimit)
				return
			}
		}
	}
}

// shutdown is the orderly termination path shared by the breakers and
// host signals: no new opens, open positions stay open and are
// reported, and the final summary is emitted.
func (b *Bot) shutdown(s State) {
	b.reportOpen()
	b.logSummary()
	b.finish(s, nil)
}

// tick polls one bar per symbol, advances each series through the
// engine and strategy, and reports whether the loss breaker tripped.
func (b *Bot) tick(ctx context.Context) (bool, error) {
	bars := b.fetchAll(ctx)

	for _, sym := range b.cfg.Symbols {
		bar, ok := bars[sym]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := b.step(ctx, sym, bar); err != nil {
			return false, err
		}
	}

	b.ticks++
	if b.cfg.SummaryEvery > 0 && b.ticks%b.cfg.SummaryEvery == 0 {
		b.logSummary()
	}

	if b.cfg.MaxLoss.IsPositive() {
		acct := b.engine.Account()
		drawdown := acct.StartingEquity.Sub(b.engine.Equity())
		if drawdown.GreaterThanOrEqual(b.cfg.MaxLoss) {
			b.log.Warn("loss limit reached",
				zap.String("drawdown", drawdown.String()),
				zap.String("limit", b.cfg.MaxLoss.String()),
			)
			return true, nil
		}
	}
	return false, nil
}

func (b *Bot) step(ctx context.Context, sym string, bar market.Bar) error {
	s := b.series[sym]

	// The source may serve the same bar across polls faster than the
	// granularity; only a newer bar advances the series.
	if s.Len() > 0 && !bar.Time.After(s.Last().Time) {
		return nil
	}
	if err := s.Append(bar); err != nil {
		return err
	}
	if b.cfg.MaxSeriesLen > 0 {
		s.Trim(b.cfg.MaxSeriesLen)
	}
	b.lastBar[sym] = bar

	pos := b.engine.Position(sym)
	if pos != nil {
		b.engine.MarkToMarket(pos, bar.Close)
		if reason, level, hit := b.engine.CheckRiskTriggers(pos, bar); hit {
			if _, err := b.engine.Close(ctx, pos, level, bar.Time, reason); err != nil {
				return err
			}
			pos = nil
		}
	}

	if s.Len() < b.strat.MinBars() {
		return nil
	}

	dec, err := b.evaluate(ctx, s, pos)
	if err != nil {
		// A degraded strategy holds; the loop keeps running.
		b.log.Warn("strategy evaluation failed, holding",
			zap.String("symbol", sym),
			zap.String("strategy", b.strat.Name()),
			zap.Error(err),
		)
		return nil
	}

	switch dec.Action {
	case strategies.ActionOpen:
		if pos != nil {
			return nil
		}
		req := sim.OpenRequest{
			Symbol:     sym,
			Dir:        dec.Dir,
			SizePct:    b.cfg.TradeSizePct,
			Leverage:   b.cfg.Leverage,
			StopLoss:   dec.StopLoss,
			TakeProfit: dec.TakeProfit,
			Strategy:   b.strat.Name(),
			Price:      bar.Close,
			Time:       bar.Time,
		}
		if _, err := b.engine.Open(ctx, req); err != nil {
			if errors.Is(err, sim.ErrInsufficientMargin) || errors.Is(err, sim.ErrPositionExists) {
				b.log.Warn("open rejected", zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			return err
		}

	case strategies.ActionClose:
		if pos == nil {
			return nil
		}
		if _, err := b.engine.Close(ctx, pos, bar.Close, bar.Time, dec.Reason); err != nil {
			if errors.Is(err, sim.ErrPositionClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}

// evaluate bounds the strategy call with the configured timeout.
func (b *Bot) evaluate(ctx context.Context, s *market.Series, pos *ledger.Position) (strategies.Decision, error) {
	if b.cfg.EvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.EvalTimeout)
		defer cancel()
	}
	return b.strat.Evaluate(ctx, s, pos)
}

// reportOpen logs every position left open at shutdown.
func (b *Bot) reportOpen() {
	for _, pos := range b.engine.OpenPositions() {
		b.log.Info("position left open",
			zap.String("symbol", pos.Symbol),
			zap.String("direction", pos.Dir.String()),
			zap.String("size", pos.Size.String()),
			zap.String("entry", pos.Entry.String()),
			zap.String("unrealized_pnl", pos.UnrealizedPnL.String()),
		)
	}
}

func (b *Bot) logSummary() {
	sum := b.engine.Summary()
	b.log.Info("account summary",
		zap.String("account", sum.Account),
		zap.String("balance", sum.Balance.String()),
		zap.String("equity", sum.Equity.String()),
		zap.String("realized_pnl", sum.RealizedPnL.String()),
		zap.String("unrealized_pnl", sum.UnrealizedPnL.String()),
		zap.String("fees_paid", sum.FeesPaid.String()),
		zap.Int("trades", sum.TradeCount),
		zap.Float64("win_rate", sum.WinRate),
		zap.Int("open_positions", len(sum.OpenPositions)),
	)
}
