package collector

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"PriceForecaster/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// With Bars unset it synthesises one bar per weekday in the requested range.
type MockFetcher struct {
	Price float64
	Bars  []model.Bar
	Err   error

	calls atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls reports how many fetches were made. Safe for concurrent use.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, from, to time.Time) ([]model.Bar, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Bars != nil {
		return m.Bars, nil
	}
	price := m.Price
	if price <= 0 {
		price = 100
	}
	return GenerateBars(price, from, to), nil
}

// GenerateBars builds a deterministic trending, oscillating weekday series in [from, to).
func GenerateBars(basePrice float64, from, to time.Time) []model.Bar {
	var bars []model.Bar
	i := 0
	for d := model.TradingDay(from); d.Before(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(i)*0.0005 + 0.03*math.Sin(float64(i)/9))
		bars = append(bars, model.Bar{
			Date:   d,
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1_000_000 + float64(i%20)*25_000,
		})
		i++
	}
	return bars
}
