package strategies

import (
	"time"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

// cooldown blocks re-entry on a symbol for a number of bars after a
// close, so signal chatter cannot become excessive trading. It is
// measured in bar time, which makes it behave identically under the
// live loop and the replayer. State is tracked per symbol: one strategy
// instance may be evaluated across a whole symbol set, and a close on
// one symbol must never embargo another.
type cooldown struct {
	bars  int
	state map[string]*cooldownState
}

type cooldownState struct {
	wasOpen bool
	until   time.Time
}

// blocked updates the gate from the current series/position view and
// reports whether new opens on this symbol are still embargoed.
func (c *cooldown) blocked(s *market.Series, pos *ledger.Position) bool {
	if s.Len() == 0 {
		return false
	}
	if c.state == nil {
		c.state = make(map[string]*cooldownState)
	}
	st, ok := c.state[s.Symbol]
	if !ok {
		st = &cooldownState{}
		c.state[s.Symbol] = st
	}
	now := s.Last().Time

	if pos != nil {
		st.wasOpen = true
		return false
	}
	if st.wasOpen {
		// Position disappeared since the last evaluation: it closed
		// (engine trigger or interpreted decision). Start the embargo.
		st.wasOpen = false
		st.until = now.Add(time.Duration(c.bars) * s.Granularity)
	}
	return now.Before(st.until)
}
