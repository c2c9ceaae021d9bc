package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PriceForecaster/internal/cache"
	"PriceForecaster/internal/model"

	"github.com/rs/zerolog"
)

// CachedFetcher serves repeated requests for the same range from a cache.
// Cache failures degrade to a direct fetch.
type CachedFetcher struct {
	next  Fetcher
	cache cache.Service
	ttl   time.Duration
	log   zerolog.Logger
}

func NewCachedFetcher(next Fetcher, c cache.Service, ttl time.Duration, log zerolog.Logger) *CachedFetcher {
	return &CachedFetcher{next: next, cache: c, ttl: ttl, log: log}
}

func (f *CachedFetcher) Name() string { return f.next.Name() }

func (f *CachedFetcher) key(symbol string, from, to time.Time) string {
	return fmt.Sprintf("bars:%s:%s:%s:%s", f.next.Name(), symbol,
		from.UTC().Format(model.DateLayout), to.UTC().Format(model.DateLayout))
}

func (f *CachedFetcher) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	key := f.key(symbol, from, to)
	var bars []model.Bar
	err := f.cache.Get(ctx, key, &bars)
	if err == nil {
		f.log.Debug().Str("key", key).Int("bars", len(bars)).Msg("bars served from cache")
		return bars, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		f.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	bars, err = f.next.FetchDailyBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		if err := f.cache.Set(ctx, key, bars, f.ttl); err != nil {
			f.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return bars, nil
}
