package strategies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/perpsim/ledger"
	"github.com/quantfold/perpsim/market"
)

func appendBar(t *testing.T, s *market.Series, at time.Time) {
	t.Helper()
	require.NoError(t, s.Append(market.Bar{
		Symbol: s.Symbol, Time: at,
		Open: dec("100"), High: dec("101"), Low: dec("99"), Close: dec("100"),
		Volume: dec("100"),
	}))
}

func TestCooldownEmbargoesAfterClose(t *testing.T) {
	gate := cooldown{bars: 3}
	s := market.NewSeries("BTC-PERP", time.Minute)
	pos := &ledger.Position{ID: "p1", Symbol: "BTC-PERP"}

	at := seriesStart
	appendBar(t, s, at)
	assert.False(t, gate.blocked(s, pos), "open position never blocks")

	// Position gone: the close starts a 3-bar embargo.
	at = at.Add(time.Minute)
	appendBar(t, s, at)
	assert.True(t, gate.blocked(s, nil))

	for i := 0; i < 2; i++ {
		at = at.Add(time.Minute)
		appendBar(t, s, at)
		assert.True(t, gate.blocked(s, nil), "bar %d still embargoed", i)
	}

	at = at.Add(time.Minute)
	appendBar(t, s, at)
	assert.False(t, gate.blocked(s, nil), "embargo expires after 3 bars")
}

func TestCooldownZeroBarsNeverBlocks(t *testing.T) {
	gate := cooldown{bars: 0}
	s := market.NewSeries("BTC-PERP", time.Minute)
	pos := &ledger.Position{ID: "p1", Symbol: "BTC-PERP"}

	appendBar(t, s, seriesStart)
	assert.False(t, gate.blocked(s, pos))

	appendBar(t, s, seriesStart.Add(time.Minute))
	assert.False(t, gate.blocked(s, nil))
}

func TestCooldownIgnoresFreshStart(t *testing.T) {
	gate := cooldown{bars: 3}
	s := market.NewSeries("BTC-PERP", time.Minute)

	appendBar(t, s, seriesStart)
	assert.False(t, gate.blocked(s, nil), "never-opened symbol is not embargoed")
}

func TestCooldownIsPerSymbol(t *testing.T) {
	gate := cooldown{bars: 3}
	a := market.NewSeries("BTC-PERP", time.Minute)
	b := market.NewSeries("ETH-PERP", time.Minute)
	posA := &ledger.Position{ID: "p1", Symbol: "BTC-PERP"}

	// A tick interleaves every symbol through the same gate. A position
	// open on one symbol must not look like a close on the next.
	at := seriesStart
	appendBar(t, a, at)
	appendBar(t, b, at)
	assert.False(t, gate.blocked(a, posA))
	assert.False(t, gate.blocked(b, nil), "no close ever happened on this symbol")

	// The close embargoes its own symbol only, and the interleaved flat
	// neighbor has not consumed the pending embargo.
	at = at.Add(time.Minute)
	appendBar(t, a, at)
	appendBar(t, b, at)
	assert.True(t, gate.blocked(a, nil), "closed symbol is embargoed")
	assert.False(t, gate.blocked(b, nil))
}
