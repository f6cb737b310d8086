package fetch

import (
	"context"
	"errors"
	"time"

	"priceowl/crawlworker/services/cache"
)

// Pacer spaces requests to one retailer using an atomic cache token: a
// request may proceed only after claiming the retailer's pacing key, which
// expires after the retailer's rate-limit interval. The token lives in the
// shared cache, so overlapping jobs for the same retailer on different
// workers still respect the spacing.
type Pacer struct {
	cache cache.CacheService
	retry time.Duration
}

// NewPacer creates a pacer over the given cache service
func NewPacer(cacheSvc cache.CacheService) *Pacer {
	return &Pacer{cache: cacheSvc, retry: 100 * time.Millisecond}
}

// Wait blocks until the retailer's pacing slot is free or the context ends.
// A zero interval means the retailer is unpaced.
func (p *Pacer) Wait(ctx context.Context, slug string, interval time.Duration) error {
	if p.cache == nil || interval <= 0 {
		return nil
	}
	key := "pace:" + slug
	for {
		err := p.cache.Add(key, []byte("1"), interval)
		if err == nil {
			return nil
		}
		if !errors.Is(err, cache.ErrNotStored) {
			// A broken cache must not stall crawling; pacing degrades to
			// best-effort
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retry):
		}
	}
}
