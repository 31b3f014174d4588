package market

import (
	"context"
	"errors"
	"sync"
)

// ErrNoData is returned by sources that have no bar for a symbol, and by
// replay sources that have run out of data.
var ErrNoData = errors.New("market: no data for symbol")

// PriceSource supplies the latest bar per symbol. Live implementations
// sit in front of an exchange feed; the replay source below serves a
// pre-loaded dataset.
type PriceSource interface {
	LatestBar(ctx context.Context, symbol string) (Bar, error)
}

// RateSource supplies a periodic rate value per symbol (funding rate for
// perpetuals). Carry strategies consume it; nothing else does.
type RateSource interface {
	Rate(ctx context.Context, symbol string) (float64, error)
}

// ReplaySource serves pre-loaded bars one per call, per symbol. It lets
// the live bot loop run unattended against historical or canned data
// with the exact semantics of a live feed.
type ReplaySource struct {
	mu   sync.Mutex
	bars map[string][]Bar
	next map[string]int
}

func NewReplaySource() *ReplaySource {
	return &ReplaySource{
		bars: make(map[string][]Bar),
		next: make(map[string]int),
	}
}

// Load registers the bar sequence served for symbol.
func (r *ReplaySource) Load(symbol string, bars []Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars[symbol] = bars
	r.next[symbol] = 0
}

// Remaining reports how many bars are still unserved for symbol.
func (r *ReplaySource) Remaining(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bars[symbol]) - r.next[symbol]
}

func (r *ReplaySource) LatestBar(ctx context.Context, symbol string) (Bar, error) {
	if err := ctx.Err(); err != nil {
		return Bar{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bars := r.bars[symbol]
	i := r.next[symbol]
	if i >= len(bars) {
		return Bar{}, ErrNoData
	}
	r.next[symbol] = i + 1
	return bars[i], nil
}

// StaticRateSource returns a fixed rate per symbol; used in tests and as
// a stand-in when no funding feed is wired.
type StaticRateSource map[string]float64

func (s StaticRateSource) Rate(ctx context.Context, symbol string) (float64, error) {
	r, ok := s[symbol]
	if !ok {
		return 0, ErrNoData
	}
	return r, nil
}
