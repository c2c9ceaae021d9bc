package collector

import (
	"context"
	"errors"
	"math"
	"time"

	"PriceForecaster/internal/model"

	"github.com/rs/zerolog"
)

var errNoData = errors.New("no data returned")

// Collector turns raw provider bars into a validated HistoryWindow.
type Collector struct {
	Fetcher Fetcher
	log     zerolog.Logger
	now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, log zerolog.Logger) *Collector {
	return &Collector{Fetcher: fetcher, log: log, now: time.Now}
}

// TrainingWindow fetches lookback worth of bars ending yesterday.
func (c *Collector) TrainingWindow(ctx context.Context, symbol string, lookback time.Duration) (*model.HistoryWindow, error) {
	to := model.TradingDay(c.now())
	return c.Collect(ctx, symbol, to.Add(-lookback), to)
}

// LatestWindow fetches lookback worth of bars up to now, today's session included.
func (c *Collector) LatestWindow(ctx context.Context, symbol string, lookback time.Duration) (*model.HistoryWindow, error) {
	now := c.now()
	return c.Collect(ctx, symbol, model.TradingDay(now.Add(-lookback)), now)
}

// Collect fetches bars in [from, to), drops unusable ones and keeps the last bar per day.
// Fetch failures and empty results are reported as *model.UpstreamFetchError.
func (c *Collector) Collect(ctx context.Context, symbol string, from, to time.Time) (*model.HistoryWindow, error) {
	raw, err := c.Fetcher.FetchDailyBars(ctx, symbol, from, to)
	if err != nil {
		return nil, &model.UpstreamFetchError{Source: c.Fetcher.Name(), Symbol: symbol, Err: err}
	}

	start := model.TradingDay(from)
	byDay := make(map[time.Time]int, len(raw))
	bars := make([]model.Bar, 0, len(raw))
	dropped := 0
	for _, b := range raw {
		b.Date = model.TradingDay(b.Date)
		if b.Date.Before(start) || !b.Date.Before(to) {
			continue
		}
		if !validBar(b) {
			dropped++
			continue
		}
		if i, ok := byDay[b.Date]; ok {
			bars[i] = b
			continue
		}
		byDay[b.Date] = len(bars)
		bars = append(bars, b)
	}
	if dropped > 0 {
		c.log.Warn().Str("symbol", symbol).Int("dropped", dropped).Msg("dropped invalid bars")
	}
	if len(bars) == 0 {
		return nil, &model.UpstreamFetchError{Source: c.Fetcher.Name(), Symbol: symbol, Err: errNoData}
	}

	window, err := model.NewHistoryWindow(symbol, bars)
	if err != nil {
		return nil, err
	}
	window.FetchedAt = c.now()
	last, _ := window.Last()
	c.log.Info().
		Str("symbol", symbol).
		Str("source", c.Fetcher.Name()).
		Int("bars", window.Len()).
		Time("first", window.Bars[0].Date).
		Time("last", last.Date).
		Float64("last_close", last.Close).
		Msg("history collected")
	return window, nil
}

func validBar(b model.Bar) bool {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return b.Close > 0
}
