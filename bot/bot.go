// Package bot runs the live paper-trading loop: poll bars for each
// configured symbol, feed them through the engine's risk triggers and
// the strategy, and stop on a breaker or an external signal.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/perpsim/config"
	"github.com/quantfold/perpsim/market"
	"github.com/quantfold/perpsim/sim"
	"github.com/quantfold/perpsim/strategies"
)

// State is the bot lifecycle state. A bot runs at most once.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStoppedSignal    // ctx cancelled or Stop called
	StateStoppedTimeLimit // max-runtime breaker
	StateStoppedLossLimit // max-loss breaker
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStoppedSignal:
		return "stopped"
	case StateStoppedTimeLimit:
		return "stopped-time-limit"
	case StateStoppedLossLimit:
		return "stopped-loss-limit"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Config holds the loop parameters in native types; see ConfigFrom for
// the file-format bridge.
type Config struct {
	Symbols     []string
	Interval    time.Duration
	Granularity time.Duration

	MaxRuntime  time.Duration // zero = unlimited
	MaxLoss     decimal.Decimal
	EvalTimeout time.Duration // zero = none

	TradeSizePct decimal.Decimal
	Leverage     decimal.Decimal // zero = account default

	SummaryEvery int
	FetchWorkers int
	FetchRetries int
	MaxSeriesLen int
}

// ConfigFrom converts the file-format bot section.
func ConfigFrom(c config.Bot) (Config, error) {
	interval, err := c.ParseInterval()
	if err != nil {
		return Config{}, err
	}
	granularity, err := c.ParseGranularity()
	if err != nil {
		return Config{}, err
	}
	maxRuntime, err := c.ParseMaxRuntime()
	if err != nil {
		return Config{}, err
	}
	evalTimeout, err := c.ParseEvalTimeout()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Symbols:      c.Symbols,
		Interval:     interval,
		Granularity:  granularity,
		MaxRuntime:   maxRuntime,
		MaxLoss:      decimal.NewFromFloat(c.MaxLoss),
		EvalTimeout:  evalTimeout,
		TradeSizePct: decimal.NewFromFloat(c.TradeSizePct),
		SummaryEvery: c.SummaryEvery,
		FetchWorkers: c.FetchWorkers,
		FetchRetries: c.FetchRetries,
		MaxSeriesLen: c.MaxSeriesLen,
	}, nil
}

func (c Config) validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("bot: no symbols")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("bot: interval must be positive")
	}
	if c.Granularity <= 0 {
		return fmt.Errorf("bot: granularity must be positive")
	}
	if !c.TradeSizePct.IsPositive() {
		return fmt.Errorf("bot: trade size pct must be positive")
	}
	if c.MaxLoss.IsNegative() {
		return fmt.Errorf("bot: max loss must be >= 0")
	}
	return nil
}

// Bot is a single-run handle over one engine, one strategy, and one
// price source.
type Bot struct {
	cfg    Config
	engine *sim.Engine
	strat  strategies.Strategy
	prices market.PriceSource
	log    *zap.Logger

	mu       sync.Mutex
	state    State
	err      error
	series   map[string]*market.Series
	lastBar  map[string]market.Bar
	failures map[string]int
	ticks    int

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a bot. prices and strat are required; a nil logger falls
// back to a no-op logger.
func New(cfg Config, engine *sim.Engine, strat strategies.Strategy, prices market.PriceSource, log *zap.Logger) (*Bot, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("bot: engine is required")
	}
	if strat == nil {
		return nil, fmt.Errorf("bot: strategy is required")
	}
	if prices == nil {
		return nil, fmt.Errorf("bot: price source is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 1
	}

	series := make(map[string]*market.Series, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		series[sym] = market.NewSeries(sym, cfg.Granularity)
	}

	return &Bot{
		cfg:      cfg,
		engine:   engine,
		strat:    strat,
		prices:   prices,
		log:      log,
		state:    StateIdle,
		series:   series,
		lastBar:  make(map[string]market.Bar, len(cfg.Symbols)),
		failures: make(map[string]int, len(cfg.Symbols)),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop. It returns an error if the bot already ran.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateIdle {
		return fmt.Errorf("bot: already started (state %s)", b.state)
	}
	b.state = StateRunning

	ctx, b.cancel = context.WithCancel(ctx)
	go b.run(ctx)
	return nil
}

// Stop requests shutdown and blocks until the loop has exited. Stopping
// a bot that never started is a no-op.
func (b *Bot) Stop() {
	b.mu.Lock()
	if b.state == StateIdle {
		b.mu.Unlock()
		return
	}
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-b.done
}

// Done is closed when the loop exits.
func (b *Bot) Done() <-chan struct{} { return b.done }

// State reports the current lifecycle state.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err reports the fault that moved the bot to StateErrored, if any.
func (b *Bot) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *Bot) finish(s State, err error) {
	b.mu.Lock()
	b.state = s
	b.err = err
	b.mu.Unlock()

	if err != nil {
		b.log.Error("bot stopped", zap.String("state", s.String()), zap.Error(err))
		return
	}
	b.log.Info("bot stopped", zap.String("state", s.String()))
}
