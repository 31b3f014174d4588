package cmd

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quantfold/perpsim/bot"
	"github.com/quantfold/perpsim/config"
	"github.com/quantfold/perpsim/market"
	"github.com/quantfold/perpsim/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live paper-trading loop from a config file",
	Long: `Run the paper-trading loop: poll a bar per symbol each interval, apply
risk triggers, evaluate the strategy and record fills in the ledger.

Bars are served from recorded datasets, one per poll, which makes runs
reproducible. Stop with Ctrl-C; the time and loss breakers also stop the
loop. Open positions are never force-closed on shutdown, they are
reported in the final summary.

Example:
  perpsim run -f config.yaml -d BTC-PERP=data/btc-1m.csv.xz`,
	RunE: runRun,
}

var (
	runConfigPath string
	runDataFlags  []string
	runRateFlags  []string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringArrayVarP(&runDataFlags, "data", "d", nil, "bar dataset per symbol, SYMBOL=path (repeatable)")
	runCmd.Flags().StringArrayVarP(&runRateFlags, "rate", "r", nil, "funding rate per symbol, SYMBOL=rate (repeatable)")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	engine, err := buildEngine(cfg, st, log)
	if err != nil {
		return err
	}

	prices, err := buildPriceSource(cfg)
	if err != nil {
		return err
	}
	rates, err := buildRateSource(runRateFlags)
	if err != nil {
		return err
	}

	strat, err := strategies.Build(cfg.Strategy, rates, nil)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}

	botCfg, err := bot.ConfigFrom(cfg.Bot)
	if err != nil {
		return err
	}
	b, err := bot.New(botCfg, engine, strat, prices, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := b.Start(ctx); err != nil {
		return err
	}
	<-b.Done()

	if err := b.Err(); err != nil {
		return err
	}

	sum := engine.Summary()
	fmt.Printf("Stopped: %s\n", b.State())
	fmt.Printf("  Balance:  %s\n", sum.Balance.StringFixed(2))
	fmt.Printf("  Equity:   %s\n", sum.Equity.StringFixed(2))
	fmt.Printf("  Realized: %s over %d trades (win rate %.1f%%)\n",
		sum.RealizedPnL.StringFixed(2), sum.TradeCount, sum.WinRate*100)
	fmt.Printf("  Fees:     %s\n", sum.FeesPaid.StringFixed(2))
	fmt.Printf("  Open positions: %d\n", len(sum.OpenPositions))
	return nil
}

// buildPriceSource loads the per-symbol datasets behind the replayed
// "live" feed. Every bot symbol needs a dataset.
func buildPriceSource(cfg *config.Config) (market.PriceSource, error) {
	paths, err := parseKeyValues("data", runDataFlags)
	if err != nil {
		return nil, err
	}

	src := market.NewReplaySource()
	for _, sym := range cfg.Bot.Symbols {
		path, ok := paths[sym]
		if !ok {
			return nil, fmt.Errorf("no --data dataset for symbol %s", sym)
		}
		bars, err := market.LoadBars(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		src.Load(sym, bars)
	}
	return src, nil
}

func buildRateSource(flags []string) (market.RateSource, error) {
	raw, err := parseKeyValues("rate", flags)
	if err != nil {
		return nil, err
	}

	rates := make(market.StaticRateSource, len(raw))
	for sym, val := range raw {
		r, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("--rate %s: bad rate %q: %w", sym, val, err)
		}
		rates[sym] = r
	}
	return rates, nil
}
