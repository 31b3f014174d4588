// Package backtest replays historical bars through a simulation engine
// and reports trade statistics.
package backtest

import (
	"github.com/quantfold/perpsim/market"
)

// Feed yields bars one at a time. Implementations should be
// deterministic and return (ok=false, err=nil) at end of data.
type Feed interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// SliceFeed replays an in-memory bar slice.
type SliceFeed struct {
	bars []market.Bar
	pos  int
}

// NewSliceFeed wraps bars, which must already be in time order.
func NewSliceFeed(bars []market.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (market.Bar, bool, error) {
	if f.pos >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.pos]
	f.pos++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// FileFeed loads a bar dataset from disk (CSV, optionally xz-compressed)
// and replays it.
func FileFeed(path string) (*SliceFeed, error) {
	bars, err := market.LoadBars(path)
	if err != nil {
		return nil, err
	}
	return NewSliceFeed(bars), nil
}
