// Package config loads and validates the simulator configuration from
// YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete run configuration shared by the live bot and
// the backtest CLI.
type Config struct {
	Account     Account          `json:"account" yaml:"account"`
	Engine      Engine           `json:"engine" yaml:"engine"`
	Bot         Bot              `json:"bot" yaml:"bot"`
	Strategy    Strategy         `json:"strategy" yaml:"strategy"`
	Store       Store            `json:"store" yaml:"store"`
	Instruments []InstrumentMeta `json:"instruments,omitempty" yaml:"instruments,omitempty"`
}

// Account contains account initialization parameters.
type Account struct {
	Name           string  `json:"name" yaml:"name"`
	StartingEquity float64 `json:"starting_equity" yaml:"starting_equity"`
	Leverage       float64 `json:"leverage" yaml:"leverage"`
	MakerFeeRate   float64 `json:"maker_fee_rate" yaml:"maker_fee_rate"`
	TakerFeeRate   float64 `json:"taker_fee_rate" yaml:"taker_fee_rate"`
}

// Engine contains the fill model.
type Engine struct {
	SlippagePct float64 `json:"slippage_pct" yaml:"slippage_pct"`
	MaxLeverage float64 `json:"max_leverage" yaml:"max_leverage"`
}

// Bot contains live-loop parameters. Durations are strings like "30s".
type Bot struct {
	Symbols      []string `json:"symbols" yaml:"symbols"`
	Interval     string   `json:"interval" yaml:"interval"`
	Granularity  string   `json:"granularity" yaml:"granularity"`
	MaxRuntime   string   `json:"max_runtime,omitempty" yaml:"max_runtime,omitempty"`
	EvalTimeout  string   `json:"eval_timeout,omitempty" yaml:"eval_timeout,omitempty"`
	MaxLoss      float64  `json:"max_loss" yaml:"max_loss"`
	TradeSizePct float64  `json:"trade_size_pct" yaml:"trade_size_pct"`
	SummaryEvery int      `json:"summary_every" yaml:"summary_every"`
	FetchWorkers int      `json:"fetch_workers" yaml:"fetch_workers"`
	FetchRetries int      `json:"fetch_retries" yaml:"fetch_retries"`
	MaxSeriesLen int      `json:"max_series_len" yaml:"max_series_len"`
}

// Strategy is the flat per-family parameter block; Family selects which
// fields apply.
type Strategy struct {
	Family string `json:"family" yaml:"family"`

	// breakout
	Lookback       int     `json:"lookback,omitempty" yaml:"lookback,omitempty"`
	VolumeMult     float64 `json:"volume_mult,omitempty" yaml:"volume_mult,omitempty"`
	StopLossPct    float64 `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	TakeProfitPct  float64 `json:"take_profit_pct,omitempty" yaml:"take_profit_pct,omitempty"`
	ContractionPct float64 `json:"contraction_pct,omitempty" yaml:"contraction_pct,omitempty"`

	// mean-reversion
	RSIPeriod    int     `json:"rsi_period,omitempty" yaml:"rsi_period,omitempty"`
	Oversold     float64 `json:"oversold,omitempty" yaml:"oversold,omitempty"`
	Overbought   float64 `json:"overbought,omitempty" yaml:"overbought,omitempty"`
	ProfitBudget float64 `json:"profit_budget,omitempty" yaml:"profit_budget,omitempty"`
	LossBudget   float64 `json:"loss_budget,omitempty" yaml:"loss_budget,omitempty"`
	MaxHoldBars  int     `json:"max_hold_bars,omitempty" yaml:"max_hold_bars,omitempty"`

	// carry
	OpenThreshold float64 `json:"open_threshold,omitempty" yaml:"open_threshold,omitempty"`
	CloseFraction float64 `json:"close_fraction,omitempty" yaml:"close_fraction,omitempty"`

	// all families
	CooldownBars int `json:"cooldown_bars,omitempty" yaml:"cooldown_bars,omitempty"`
}

// Store selects the persistence backend.
type Store struct {
	Type string `json:"type" yaml:"type"` // "sqlite" or "memory"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// InstrumentMeta declares per-symbol contract metadata.
type InstrumentMeta struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	TickSize string `json:"tick_size" yaml:"tick_size"`
}

// LoadFromFile loads configuration from a YAML or JSON file; YAML is
// tried first, JSON as fallback.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseInterval returns the polling interval.
func (b Bot) ParseInterval() (time.Duration, error) {
	return parseDuration(b.Interval, "bot.interval")
}

// ParseGranularity returns the bar granularity.
func (b Bot) ParseGranularity() (time.Duration, error) {
	return parseDuration(b.Granularity, "bot.granularity")
}

// ParseMaxRuntime returns the time-limit breaker; zero means unlimited.
func (b Bot) ParseMaxRuntime() (time.Duration, error) {
	if b.MaxRuntime == "" {
		return 0, nil
	}
	return parseDuration(b.MaxRuntime, "bot.max_runtime")
}

// ParseEvalTimeout returns the strategy-call timeout; zero means none.
func (b Bot) ParseEvalTimeout() (time.Duration, error) {
	if b.EvalTimeout == "" {
		return 0, nil
	}
	return parseDuration(b.EvalTimeout, "bot.eval_timeout")
}

func parseDuration(s, field string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: bad duration %q: %w", field, s, err)
	}
	return d, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Account.Name == "" {
		return fmt.Errorf("account.name is required")
	}
	if c.Account.StartingEquity <= 0 {
		return fmt.Errorf("account.starting_equity must be positive")
	}
	if c.Account.Leverage < 1 {
		return fmt.Errorf("account.leverage must be >= 1")
	}
	if c.Account.TakerFeeRate < 0 || c.Account.TakerFeeRate >= 0.1 {
		return fmt.Errorf("account.taker_fee_rate must be in [0, 0.1)")
	}
	if c.Account.MakerFeeRate < 0 || c.Account.MakerFeeRate >= 0.1 {
		return fmt.Errorf("account.maker_fee_rate must be in [0, 0.1)")
	}
	if c.Engine.SlippagePct < 0 || c.Engine.SlippagePct >= 0.05 {
		return fmt.Errorf("engine.slippage_pct must be in [0, 0.05)")
	}
	if c.Engine.MaxLeverage < 1 {
		return fmt.Errorf("engine.max_leverage must be >= 1")
	}
	if c.Account.Leverage > c.Engine.MaxLeverage {
		return fmt.Errorf("account.leverage exceeds engine.max_leverage")
	}
	if len(c.Bot.Symbols) == 0 {
		return fmt.Errorf("bot.symbols must not be empty")
	}
	if _, err := c.Bot.ParseInterval(); err != nil {
		return err
	}
	if _, err := c.Bot.ParseGranularity(); err != nil {
		return err
	}
	if _, err := c.Bot.ParseMaxRuntime(); err != nil {
		return err
	}
	if _, err := c.Bot.ParseEvalTimeout(); err != nil {
		return err
	}
	if c.Bot.MaxLoss < 0 {
		return fmt.Errorf("bot.max_loss must be >= 0")
	}
	if c.Bot.TradeSizePct <= 0 || c.Bot.TradeSizePct > 1 {
		return fmt.Errorf("bot.trade_size_pct must be in (0, 1]")
	}
	if c.Strategy.Family == "" {
		return fmt.Errorf("strategy.family is required")
	}
	switch strings.ToLower(c.Store.Type) {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for sqlite store")
		}
	case "memory":
	default:
		return fmt.Errorf("store.type must be 'sqlite' or 'memory'")
	}
	return nil
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Account: Account{
			Name:           "paper-1",
			StartingEquity: 10_000,
			Leverage:       2,
			MakerFeeRate:   0.0002,
			TakerFeeRate:   0.0005,
		},
		Engine: Engine{
			SlippagePct: 0.001,
			MaxLeverage: 20,
		},
		Bot: Bot{
			Symbols:      []string{"BTC-PERP"},
			Interval:     "30s",
			Granularity:  "1m",
			EvalTimeout:  "5s",
			MaxLoss:      500,
			TradeSizePct: 0.1,
			SummaryEvery: 20,
			FetchWorkers: 4,
			FetchRetries: 3,
			MaxSeriesLen: 2000,
		},
		Strategy: Strategy{
			Family:         "breakout",
			Lookback:       20,
			VolumeMult:     1.5,
			StopLossPct:    0.02,
			TakeProfitPct:  0.04,
			ContractionPct: 0.4,
			CooldownBars:   5,
		},
		Store: Store{
			Type: "sqlite",
			Path: "./perpsim.sqlite",
		},
	}
}
