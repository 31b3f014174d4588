package indicators

import "fmt"

// Band is a rolling support/resistance channel: the highest high and
// lowest low over a lookback window.
type Band struct {
	High float64
	Low  float64
}

// Width returns High − Low.
func (b Band) Width() float64 { return b.High - b.Low }

// Channel computes the band over the last period entries of highs/lows.
// Breakout strategies call it on the window *preceding* the current bar
// so the current bar can be tested against it.
func Channel(highs, lows []float64, period int) (Band, error) {
	if period <= 0 {
		return Band{}, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(highs) < period || len(lows) < period {
		return Band{}, fmt.Errorf("not enough values: need %d, got %d", period, min(len(highs), len(lows)))
	}

	b := Band{High: highs[len(highs)-period], Low: lows[len(lows)-period]}
	for i := len(highs) - period + 1; i < len(highs); i++ {
		if highs[i] > b.High {
			b.High = highs[i]
		}
	}
	for i := len(lows) - period + 1; i < len(lows); i++ {
		if lows[i] < b.Low {
			b.Low = lows[i]
		}
	}
	return b, nil
}
