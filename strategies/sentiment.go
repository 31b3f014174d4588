package strategies

import (
	"context"

	"github.com/quantfold/perpsim/ledger"
)

// Sentiment is a precomputed market-mood score with a confidence weight.
// Provenance (LLM, news feed, social volume) is irrelevant here; the
// engine never sees it.
type Sentiment struct {
	Score      float64 // -1 (bearish) .. +1 (bullish)
	Confidence float64 // 0 .. 1
}

// SentimentSource supplies optional enrichment for strategies that want
// it. Implementations may be slow; callers bound the context deadline
// and strategies degrade to "no enrichment" on any failure.
type SentimentSource interface {
	Sentiment(ctx context.Context, symbol string) (Sentiment, error)
}

// adjustConfidence blends a sentiment reading into a signal confidence:
// agreement raises it, disagreement lowers it, both scaled by the
// reading's own confidence. The result stays in [0, 1].
func adjustConfidence(base float64, dir ledger.Direction, sent Sentiment) float64 {
	agreement := sent.Score * float64(dir) * sent.Confidence
	c := base + 0.2*agreement
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
