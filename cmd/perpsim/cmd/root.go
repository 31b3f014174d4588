package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "perpsim",
	Short: "A perpetual-futures paper trading simulator",
	Long: `Perpsim is a paper trading simulator for perpetual futures.

It provides tools for:
  - Running a live paper-trading loop against a bar source
  - Backtesting strategies over historical bar datasets
  - Tracking balance, margin, fees and PnL per closed trade
  - Stop-loss, take-profit and trailing-stop risk triggers
  - Reporting trade statistics from the persisted ledger`,
}

var verbose bool

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger; --verbose switches to the
// human-readable development encoder at debug level.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
