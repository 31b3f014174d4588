package cmd

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/quantfold/perpsim/backtest"
	"github.com/quantfold/perpsim/config"
	"github.com/quantfold/perpsim/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a historical bar dataset through a strategy",
	Long: `Replay a bar dataset (CSV, optionally xz-compressed) through the
configured strategy and print trade statistics.

Any position still open at the last bar is closed at its close price.

Example:
  perpsim backtest -f config.yaml -d data/btc-1m.csv.xz`,
	RunE: runBacktest,
}

var (
	backtestConfigPath string
	backtestDataPath   string
	backtestRateFlags  []string
	backtestMinConf    float64
	backtestKeepOpen   bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&backtestConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	backtestCmd.Flags().StringVarP(&backtestDataPath, "data", "d", "", "path to bar dataset (required)")
	backtestCmd.Flags().StringArrayVarP(&backtestRateFlags, "rate", "r", nil, "funding rate per symbol, SYMBOL=rate (repeatable)")
	backtestCmd.Flags().Float64Var(&backtestMinConf, "min-confidence", 0, "discard open signals below this confidence")
	backtestCmd.Flags().BoolVar(&backtestKeepOpen, "keep-open", false, "leave the final position open instead of closing at end of data")
	backtestCmd.MarkFlagRequired("config")
	backtestCmd.MarkFlagRequired("data")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(backtestConfigPath)
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

	rates, err := buildRateSource(backtestRateFlags)
	if err != nil {
		return err
	}

	strat, err := strategies.Build(cfg.Strategy, rates, nil)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}

	feed, err := backtest.FileFeed(backtestDataPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	granularity, err := cfg.Bot.ParseGranularity()
	if err != nil {
		return err
	}

	r := &backtest.Replayer{
		Engine:   engine,
		Feed:     feed,
		Strategy: strat,
		Options: backtest.Options{
			Granularity:   granularity,
			SizePct:       decimal.NewFromFloat(cfg.Bot.TradeSizePct),
			MinConfidence: backtestMinConf,
			MaxSeriesLen:  cfg.Bot.MaxSeriesLen,
			KeepOpenAtEnd: backtestKeepOpen,
		},
		Log: log,
	}

	res, err := r.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Backtest: %s, %d bars (%s .. %s)\n",
		res.Symbol, res.Bars,
		res.Start.Format("2006-01-02 15:04"), res.End.Format("2006-01-02 15:04"))
	fmt.Printf("  Strategy:      %s\n", strat.Name())
	fmt.Printf("  Final balance: %s\n", res.FinalBalance.StringFixed(2))
	fmt.Printf("  Final equity:  %s\n", res.FinalEquity.StringFixed(2))
	printStats(res.Stats)
	return nil
}

func printStats(s backtest.Stats) {
	fmt.Printf("  Trades:        %d (%d wins / %d losses, win rate %.1f%%)\n",
		s.Trades, s.Wins, s.Losses, s.WinRate*100)
	fmt.Printf("  Net PnL:       %s (fees %s)\n", s.NetPnL.StringFixed(2), s.Fees.StringFixed(2))
	if math.IsInf(s.ProfitFactor, 1) {
		fmt.Printf("  Profit factor: inf (no losing trades)\n")
	} else {
		fmt.Printf("  Profit factor: %.2f\n", s.ProfitFactor)
	}
	fmt.Printf("  Avg win/loss:  %s / %s\n", s.AvgWin.StringFixed(2), s.AvgLoss.StringFixed(2))
	fmt.Printf("  Largest:       +%s / -%s\n", s.LargestWin.StringFixed(2), s.LargestLoss.StringFixed(2))
	fmt.Printf("  Max drawdown:  %s\n", s.MaxDrawdown.StringFixed(2))
}
