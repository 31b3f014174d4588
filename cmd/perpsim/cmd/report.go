package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantfold/perpsim/backtest"
	"github.com/quantfold/perpsim/config"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print trade statistics from the persisted ledger",
	Long: `Report closed trades and equity history for the configured account
over a time window.

Example:
  perpsim report -f config.yaml --from 2026-01-01T00:00:00Z`,
	RunE: runReport,
}

var (
	reportConfigPath string
	reportFrom       string
	reportTo         string
	reportTrades     bool
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "window start, RFC3339 (default: beginning)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "window end, RFC3339 (default: now)")
	reportCmd.Flags().BoolVar(&reportTrades, "trades", false, "list every closed trade")
	reportCmd.MarkFlagRequired("config")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(reportConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	from, to, err := reportWindow()
	if err != nil {
		return err
	}

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	acct, err := st.LoadAccount(cfg.Account.Name)
	if err != nil {
		return fmt.Errorf("load account %q: %w", cfg.Account.Name, err)
	}

	trades, err := st.TradesBetween(acct.Name, from, to)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	equity, err := st.EquityBetween(acct.Name, from, to)
	if err != nil {
		return fmt.Errorf("load equity: %w", err)
	}

	fmt.Printf("Account %s: balance %s (started %s)\n",
		acct.Name, acct.Balance.StringFixed(2), acct.StartingEquity.StringFixed(2))
	fmt.Printf("Window: %s .. %s, %d equity samples\n",
		from.Format(time.RFC3339), to.Format(time.RFC3339), len(equity))
	printStats(backtest.Compute(acct.StartingEquity, trades))

	if reportTrades {
		fmt.Println()
		for _, t := range trades {
			fmt.Printf("  %s  %-10s %-5s size=%s  %s -> %s  net=%s  (%s, %s)\n",
				t.CloseTime.Format("2006-01-02 15:04"),
				t.Symbol, t.Dir,
				t.Size.String(),
				t.Entry.String(), t.Exit.String(),
				t.NetPnL.StringFixed(2),
				t.Reason, t.Holding().Round(time.Second))
		}
	}
	return nil
}

func reportWindow() (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()

	if reportFrom != "" {
		t, err := time.Parse(time.RFC3339, reportFrom)
		if err != nil {
			return from, to, fmt.Errorf("--from: %w", err)
		}
		from = t
	}
	if reportTo != "" {
		t, err := time.Parse(time.RFC3339, reportTo)
		if err != nil {
			return from, to, fmt.Errorf("--to: %w", err)
		}
		to = t
	}
	return from, to, nil
}
