package market

import (
	"fmt"
	"time"
)

// Series is a time-ordered run of bars for one symbol at a fixed granularity.
// Strategies receive a read-only view; drivers own the append side.
type Series struct {
	Symbol      string
	Granularity time.Duration

	bars []Bar
}

func NewSeries(symbol string, granularity time.Duration) *Series {
	return &Series{Symbol: symbol, Granularity: granularity}
}

// Append adds a bar to the end of the series. Bars must arrive in
// non-decreasing time order; out-of-order bars are rejected so replay
// stays deterministic.
func (s *Series) Append(b Bar) error {
	if n := len(s.bars); n > 0 && b.Time.Before(s.bars[n-1].Time) {
		return fmt.Errorf("series %s: bar at %s is older than last bar %s",
			s.Symbol, b.Time.Format(time.RFC3339), s.bars[n-1].Time.Format(time.RFC3339))
	}
	s.bars = append(s.bars, b)
	return nil
}

// Trim drops the oldest bars so the series holds at most max entries.
// The live loop uses this to bound memory on long runs.
func (s *Series) Trim(max int) {
	if max > 0 && len(s.bars) > max {
		s.bars = append(s.bars[:0:0], s.bars[len(s.bars)-max:]...)
	}
}

func (s *Series) Len() int { return len(s.bars) }

func (s *Series) At(i int) Bar { return s.bars[i] }

// Last returns the most recent bar. It panics on an empty series;
// callers gate on Len (strategies gate on MinBars).
func (s *Series) Last() Bar { return s.bars[len(s.bars)-1] }

// LastN returns up to n most recent bars, oldest first.
func (s *Series) LastN(n int) []Bar {
	if n >= len(s.bars) {
		return s.bars
	}
	return s.bars[len(s.bars)-n:]
}

// Closes returns close prices as float64, for indicator math.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close.InexactFloat64()
	}
	return out
}

// Volumes returns volumes as float64, for indicator math.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Volume.InexactFloat64()
	}
	return out
}
