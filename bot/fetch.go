package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/perpsim/market"
)

const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 5 * time.Second
)

// backoffDelay doubles per attempt from backoffBase, capped at
// backoffCap.
func backoffDelay(attempt int) time.Duration {
	d := backoffBase << uint(attempt)
	if d > backoffCap || d <= 0 {
		return backoffCap
	}
	return d
}

// fetchAll polls the latest bar for every symbol through a bounded
// worker pool and returns the successful fetches.
func (b *Bot) fetchAll(ctx context.Context) map[string]market.Bar {
	workers := b.cfg.FetchWorkers
	if workers > len(b.cfg.Symbols) {
		workers = len(b.cfg.Symbols)
	}

	jobs := make(chan string)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		bars = make(map[string]market.Bar, len(b.cfg.Symbols))
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				bar, err := b.fetchOne(ctx, sym)
				if err != nil {
					b.noteFailure(sym, err)
					continue
				}
				b.noteSuccess(sym)
				mu.Lock()
				bars[sym] = bar
				mu.Unlock()
			}
		}()
	}

	for _, sym := range b.cfg.Symbols {
		select {
		case jobs <- sym:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	return bars
}

// fetchOne retries transient source failures with exponential backoff.
// A source reporting no data is not retried; the symbol just sits this
// tick out.
func (b *Bot) fetchOne(ctx context.Context, sym string) (market.Bar, error) {
	var lastErr error
	for attempt := 0; attempt <= b.cfg.FetchRetries; attempt++ {
		bar, err := b.prices.LatestBar(ctx, sym)
		if err == nil {
			return bar, nil
		}
		if errors.Is(err, market.ErrNoData) || ctx.Err() != nil {
			return market.Bar{}, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return market.Bar{}, ctx.Err()
		case <-time.After(backoffDelay(attempt)):
		}
	}
	return market.Bar{}, lastErr
}

func (b *Bot) noteFailure(sym string, err error) {
	b.mu.Lock()
	b.failures[sym]++
	n := b.failures[sym]
	b.mu.Unlock()

	if errors.Is(err, market.ErrNoData) {
		b.log.Debug("no bar available", zap.String("symbol", sym))
		return
	}
	b.log.Warn("bar fetch failed",
		zap.String("symbol", sym),
		zap.Int("consecutive", n),
		zap.Error(err),
	)
}

func (b *Bot) noteSuccess(sym string) {
	b.mu.Lock()
	b.failures[sym] = 0
	b.mu.Unlock()
}
