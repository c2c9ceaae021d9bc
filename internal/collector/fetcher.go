package collector

import (
	"context"
	"time"

	"PriceForecaster/internal/model"
)

// Fetcher defines the interface for fetching daily market data.
// Bars are returned for trading days in [from, to); order is not guaranteed.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
	Name() string
}
